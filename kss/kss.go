// Package kss stores large binary files outside of the database.
// There are currently two possible backends: a local file system and AWS S3.
package kss

import (
	"errors"
	"io"
)

// ErrNotFound means no file is stored under the key.
var ErrNotFound = errors.New("file not found")

// Meta describes a stored file.
type Meta struct {
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Driver defines the interface for the KSS service. A key holds at most
// one file; storing overwrites.
type Driver interface {
	Exists(key string) (bool, error)
	Store(key string, contentType string, r io.Reader) error
	// Fetch returns the file content and its metadata. The caller closes
	// the reader.
	Fetch(key string) (io.ReadCloser, Meta, error)
	DeleteAll(key string) error
}

// DriverType represents the different type of KSS Drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation of the KSS service
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation of the KSS service
const DriverTypeAWSS3 DriverType = "AWSS3"

// None is used when there is no KSS implementation
const None DriverType = ""

// Configuration contains the configuration for the KSS service
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// LocalConfiguration contains the configuration for the local filesystem KSS service
type LocalConfiguration struct {
	BasePath string
}

// S3Configuration contains the configuration for the AWS S3 KSS service
type S3Configuration struct {
	AWSRegion     string
	AWSBucketName string
	AccessID      string
	AccessKey     string
	KeyPrefix     string
}

// New creates the driver for the configuration. DriverType None yields a
// nil driver.
func New(config Configuration) (Driver, error) {
	switch config.DriverType {
	case DriverTypeLocal:
		if config.LocalConfiguration == nil {
			return nil, errors.New("missing local configuration")
		}
		driver, err := NewLocalFilesystem(config.LocalConfiguration.BasePath)
		if err != nil {
			return nil, err
		}
		return driver, nil
	case DriverTypeAWSS3:
		if config.S3Configuration == nil {
			return nil, errors.New("missing S3 configuration")
		}
		driver, err := NewS3(*config.S3Configuration)
		if err != nil {
			return nil, err
		}
		return driver, nil
	case None:
		return nil, nil
	}
	return nil, errors.New("unknown driver type " + string(config.DriverType))
}
