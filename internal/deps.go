// Package internal wires the services shared by every handler
package internal

import (
	"bitwise74/kidney-api/internal/service"
	"bitwise74/kidney-api/internal/store"
	"bitwise74/kidney-api/pkg/security"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Deps struct {
	Media       *store.Media
	Users       *store.UserStore
	ReportStore *store.ReportStore

	Auth        *service.Auth
	Reports     *service.Reports
	Codes       *service.CodeCache
	Queue       *service.PredictionQueue
	Keeper      *service.UploadKeeper
	Predictions *service.Predictions

	cleanup *cron.Cron
}

// NewDeps builds every service from the loaded config and makes sure both
// documents exist
func NewDeps(ctx context.Context) (*Deps, error) {
	media, err := store.OpenMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage, %w", err)
	}

	return NewDepsWithMedia(ctx, media)
}

// NewDepsWithMedia is NewDeps on already opened media
func NewDepsWithMedia(ctx context.Context, media *store.Media) (*Deps, error) {
	d := &Deps{
		Media:       media,
		Users:       store.NewUserStore(media.Users),
		ReportStore: store.NewReportStore(media.Reports),
	}

	if err := d.Users.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s, %w", d.Users.Name(), err)
	}

	if err := d.ReportStore.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s, %w", d.ReportStore.Name(), err)
	}

	hasher, err := security.NewPasswordHasher(viper.GetString("security.hasher"))
	if err != nil {
		return nil, err
	}

	codes, err := service.NewCodeCache(viper.GetDuration("otp.ttl"))
	if err != nil {
		return nil, err
	}
	d.Codes = codes

	var notifier service.Notifier = service.LogNotifier{}
	if viper.GetBool("mail.enabled") {
		n, err := service.NewMailNotifier(service.MailConfig{
			Host:     viper.GetString("mail.host"),
			Port:     viper.GetInt("mail.port"),
			Username: viper.GetString("mail.username"),
			Password: viper.GetString("mail.password"),
			From:     viper.GetString("mail.sender_address"),
		})
		if err != nil {
			codes.Close()
			return nil, err
		}

		notifier = n
	}

	tokens := security.NewTokenIssuer(
		viper.GetString("jwt.secret"),
		time.Duration(viper.GetInt("jwt.expire_minutes"))*time.Minute,
	)

	d.Auth = service.NewAuth(d.Users, hasher, tokens, codes, notifier, service.AuthConfig{
		RequireResetProof: viper.GetBool("auth.require_reset_proof"),
		ResetTokenTTL:     viper.GetDuration("auth.reset_token_ttl"),
	})
	d.Reports = service.NewReports(d.ReportStore)

	keeper, err := service.NewUploadKeeper(viper.GetString("upload.dir"))
	if err != nil {
		codes.Close()
		return nil, err
	}

	if viper.GetBool("upload.mirror") && media.S3 != nil {
		keeper.WithMirror(service.NewS3Uploader(media.S3), *media.S3.Bucket, "uploads")
	}
	d.Keeper = keeper

	d.Queue = service.NewPredictionQueue(
		service.RandomClassifier{Delay: viper.GetDuration("predictor.delay")},
		service.QueueConfig{
			Workers: viper.GetInt("predictor.workers"),
			Backlog: viper.GetInt("predictor.queue_size"),
			Timeout: viper.GetDuration("predictor.timeout"),
		},
	)
	d.Queue.StartWorkerPool()

	d.Predictions = service.NewPredictions(d.Queue, keeper)

	if retention := viper.GetDuration("upload.retention"); retention > 0 {
		c, err := service.UploadCleanup(viper.GetString("upload.cleanup_schedule"), retention, keeper)
		if err != nil {
			d.Close()
			return nil, err
		}

		d.cleanup = c
	}

	return d, nil
}

// Close stops every background worker and releases the storage clients
func (d *Deps) Close() error {
	var errs []error

	if d.cleanup != nil {
		<-d.cleanup.Stop().Done()
	}

	if d.Queue != nil {
		d.Queue.Stop()
	}

	if d.Codes != nil {
		errs = append(errs, d.Codes.Close())
	}

	if d.Media != nil && d.Media.DB != nil {
		if sqlDB, err := d.Media.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}

	zap.L().Debug("Dependencies closed")

	return errors.Join(errs...)
}
