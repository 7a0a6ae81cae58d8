package utils

import (
	"strconv"
	"strings"
	"time"
)

// GenerateConnectionString собирает DSN для pgxpool. poolSize попадает в pool_max_conns
func GenerateConnectionString(
	host, user, password, dbName, sslMode string,
	port, poolSize int,
	timeout time.Duration,
) (string, error) {
	switch {
	case host == "":
		return "", ErrStorageEmptyHostName
	case port <= 0 || port > 65535:
		return "", ErrStorageInvalidPortNumber
	case user == "":
		return "", ErrStorageEmptyUsername
	case password == "":
		return "", ErrStorageEmptyPassword
	case dbName == "":
		return "", ErrStorageInvalidDatabaseName
	case sslMode == "":
		return "", ErrStorageInvalidSslMode
	case timeout < 0:
		return "", ErrStorageInvalidTimeout
	case poolSize < 0:
		return "", ErrStorageInvalidPoolSize
	}

	var conStr strings.Builder
	conStr.WriteString("host=" + host)
	conStr.WriteString(" port=" + strconv.Itoa(port))
	conStr.WriteString(" user=" + user)
	conStr.WriteString(" password=" + password)
	conStr.WriteString(" dbname=" + dbName)
	conStr.WriteString(" sslmode=" + sslMode)

	if poolSize > 0 {
		conStr.WriteString(" pool_max_conns=" + strconv.Itoa(poolSize))
	}
	if timeout > 0 {
		conStr.WriteString(" connect_timeout=" + strconv.Itoa(int(timeout.Seconds())))
	}

	return conStr.String(), nil
}
