package store

import (
	a "bitwise74/kidney-api/aws"
	"bitwise74/kidney-api/cloudflare"
	"bitwise74/kidney-api/db"
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Media are the mediums of both documents plus the clients backing them,
// chosen by storage.type
type Media struct {
	Users   Medium
	Reports Medium

	// Set when storage.type is s3 or r2
	S3 *a.S3Client
	// Set when storage.type is sql
	DB *gorm.DB
}

func OpenMedia(ctx context.Context) (*Media, error) {
	users := viper.GetString("storage.users_file")
	reports := viper.GetString("storage.reports_file")

	m := &Media{}

	switch t := viper.GetString("storage.type"); t {
	case "local":
		dir := viper.GetString("storage.dir")

		m.Users = NewLocalMedium(filepath.Join(dir, users))
		m.Reports = NewLocalMedium(filepath.Join(dir, reports))
	case "s3", "r2":
		var (
			c   *a.S3Client
			err error
		)

		if t == "s3" {
			c, err = a.NewS3(ctx)
		} else {
			c, err = cloudflare.NewR2(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s client, %w", t, err)
		}

		prefix := viper.GetString("storage.prefix")

		m.S3 = c
		m.Users = NewS3Medium(c.C, *c.Bucket, path.Join(prefix, users))
		m.Reports = NewS3Medium(c.C, *c.Bucket, path.Join(prefix, reports))
	case "sql":
		conn, err := db.New(viper.GetString("storage.sql.driver"), viper.GetString("storage.sql.dsn"))
		if err != nil {
			return nil, err
		}

		m.DB = conn
		m.Users = NewSQLMedium(conn, users)
		m.Reports = NewSQLMedium(conn, reports)
	default:
		return nil, fmt.Errorf("invalid storage type %q", t)
	}

	zap.L().Debug("Storage media opened",
		zap.String("users", m.Users.Name()),
		zap.String("reports", m.Reports.Name()))

	return m, nil
}
