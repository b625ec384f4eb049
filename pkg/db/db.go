package db

import (
	"fmt"
	"sync"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/config"
	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	constant "github.com/NpoolPlatform/go-service-framework/pkg/mysql/const"

	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	remindertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/servicename"
	watchertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	keyUsername = "username"
	keyPassword = "password"
	keyDBName   = "database_name"
)

var (
	client *gorm.DB
	mutex  sync.Mutex
)

func dsn() (string, error) {
	username := config.GetStringValueWithNameSpace(constant.MysqlServiceName, keyUsername)
	password := config.GetStringValueWithNameSpace(constant.MysqlServiceName, keyPassword)
	dbname := config.GetStringValueWithNameSpace(servicename.ServiceName, keyDBName)

	svc, err := config.PeekService(constant.MysqlServiceName)
	if err != nil {
		logger.Sugar().Warnw("dsn", "Error", err)
		return "", err
	}

	return fmt.Sprintf("%v:%v@tcp(%v:%v)/%v?parseTime=true&interpolateParams=true",
		username, password,
		svc.Address,
		svc.Port,
		dbname,
	), nil
}

func Init() error {
	mutex.Lock()
	defer mutex.Unlock()

	if client != nil {
		return nil
	}

	hdsn, err := dsn()
	if err != nil {
		return err
	}

	conn, err := gorm.Open(mysql.Open(hdsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("fail open mysql: %v", err)
	}

	db, err := conn.DB()
	if err != nil {
		return err
	}
	// https://github.com/go-sql-driver/mysql
	// See "Important settings" section.
	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	if err := conn.AutoMigrate(
		&ordertypes.Order{},
		&ordertypes.StatusFlow{},
		&watchertypes.PendingTx{},
		&remindertypes.OrderReminder{},
	); err != nil {
		return fmt.Errorf("fail migrate: %v", err)
	}

	client = conn
	return nil
}

func Client() (*gorm.DB, error) {
	if client == nil {
		return nil, fmt.Errorf("invalid db client")
	}
	return client, nil
}

// ReplaceClient swaps the connection; test helpers use it with sqlite.
func ReplaceClient(conn *gorm.DB) {
	mutex.Lock()
	defer mutex.Unlock()
	client = conn
}
