package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/acme-health/labor/core/access"
	"github.com/acme-health/labor/core/csql"
	"github.com/acme-health/labor/core/logger"
	"github.com/acme-health/labor/directory"
	"github.com/acme-health/labor/events"
	"github.com/acme-health/labor/kss"
	"github.com/acme-health/labor/labor/rest"
	"github.com/acme-health/labor/labor/service"
	"github.com/acme-health/labor/labor/store"
	"github.com/acme-health/labor/mail"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Postgres         string `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	Addr             string `env:"ADDR,optional,default=:3000" description:"the listen address"`
	LogLevel         string `env:"LOG_LEVEL,optional,default=info" description:"The level used for logger, can be debug, warning, info, error"`

	StoreTimeoutShort time.Duration `env:"STORE_TIMEOUT_SHORT,optional,default=500ms" description:"budget for point database operations"`
	StoreTimeoutLong  time.Duration `env:"STORE_TIMEOUT_LONG,optional,default=2s" description:"budget for database scans"`

	AdminPassword string `env:"ADMIN_PASSWORD,optional" description:"if set, an admin account is provisioned at startup"`
	JwtSecret     string `env:"JWT_SECRET,optional" description:"if set, bearer tokens signed with this secret are accepted"`

	KafkaBrokers string `env:"KAFKA_BROKERS,optional" description:"comma separated Kafka brokers for change events"`
	KafkaTopic   string `env:"KAFKA_TOPIC,optional,default=labor-events" description:"the Kafka topic for change events"`

	SMTPAddr string `env:"SMTP_ADDR,optional" description:"mail relay in host:port form, mail is disabled when empty"`
	MailFrom string `env:"MAIL_FROM,optional,default=noreply@acme-health.example" description:"sender of notification mails"`
	MailTo   string `env:"MAIL_TO,optional" description:"recipient of notification mails"`

	FileStorePath string `env:"FILE_STORE_PATH,optional" description:"directory for uploaded files, used when no S3 bucket is configured"`
	S3Region      string `env:"S3_REGION,optional" description:"AWS region of the file bucket"`
	S3Bucket      string `env:"S3_BUCKET,optional" description:"S3 bucket for uploaded files"`
	S3AccessID    string `env:"S3_ACCESS_ID,optional" description:"access key id for the file bucket"`
	S3AccessKey   string `env:"S3_ACCESS_KEY,optional" description:"secret access key for the file bucket"`
	S3KeyPrefix   string `env:"S3_KEY_PREFIX,optional,default=labor" description:"key prefix inside the file bucket"`
}

func main() {
	cfg := &Service{}
	if err := envdecode.Decode(cfg); err != nil {
		panic(err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	logger.InitLogger(level)
	log := logger.Default()

	db := csql.OpenWithSchema(cfg.Postgres, cfg.PostgresPassword, "labor")
	defer db.Close()

	laborStore, err := store.NewPostgres(db, store.Timeouts{
		Short: cfg.StoreTimeoutShort,
		Long:  cfg.StoreTimeoutLong,
	})
	if err != nil {
		log.WithError(err).Fatalln("cannot create labor store")
	}
	dir, err := directory.NewPostgres(db)
	if err != nil {
		log.WithError(err).Fatalln("cannot create user directory")
	}
	provisionAdmin(dir, cfg.AdminPassword, log)

	var mailer mail.Mailer = mail.Discard{}
	if cfg.SMTPAddr != "" {
		mailer = &mail.SMTP{Addr: cfg.SMTPAddr, From: cfg.MailFrom, To: cfg.MailTo}
	}

	var publisher *events.Publisher
	if cfg.KafkaBrokers != "" {
		publisher = events.NewPublisher(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		defer publisher.Close()
	}

	files, err := fileDriver(cfg)
	if err != nil {
		log.WithError(err).Fatalln("cannot create file storage")
	}

	svc := service.New(laborStore, dir, mailer, publisher)

	router := mux.NewRouter()
	logger.AddRequestID(router)
	router.Use(func(h http.Handler) http.Handler {
		return handlers.CompressHandler(h)
	})
	router.Use(access.NewBasicAuthMiddleware(dir))
	if cfg.JwtSecret != "" {
		router.Use(access.NewJwtMiddleware([]byte(cfg.JwtSecret), dir))
	}
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(version))
	}).Methods(http.MethodGet)
	rest.New(router, svc, files)

	cors := handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "If-Match", "If-None-Match"}),
		handlers.ExposedHeaders([]string{"Etag", "Location"}),
	)

	server := &http.Server{Addr: cfg.Addr, Handler: cors(router)}
	go func() {
		log.Infoln("listen on", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatalln("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Errorln("shutdown failed")
	}
}

// provisionAdmin creates the admin account on first start. An existing
// account is left untouched.
func provisionAdmin(dir directory.Directory, password string, log *logrus.Entry) {
	if password == "" {
		return
	}
	_, err := dir.Create(context.Background(), "admin", password, []string{directory.RoleAdmin})
	if err == directory.ErrUsernameTaken {
		return
	}
	if err != nil {
		log.WithError(err).Fatalln("cannot provision admin account")
	}
	log.Infoln("admin account provisioned")
}

func fileDriver(cfg *Service) (kss.Driver, error) {
	config := kss.Configuration{DriverType: kss.None}
	if cfg.S3Bucket != "" {
		config = kss.Configuration{
			DriverType: kss.DriverTypeAWSS3,
			S3Configuration: &kss.S3Configuration{
				AWSRegion:     cfg.S3Region,
				AWSBucketName: cfg.S3Bucket,
				AccessID:      cfg.S3AccessID,
				AccessKey:     cfg.S3AccessKey,
				KeyPrefix:     cfg.S3KeyPrefix,
			},
		}
	} else if cfg.FileStorePath != "" {
		config = kss.Configuration{
			DriverType:         kss.DriverTypeLocal,
			LocalConfiguration: &kss.LocalConfiguration{BasePath: cfg.FileStorePath},
		}
	}
	return kss.New(config)
}
