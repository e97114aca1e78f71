package workflow

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntryErrNo = 1062

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntryErrNo
	}
	return false
}
