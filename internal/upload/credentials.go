package upload

import (
	"errors"
	"fmt"

	"github.com/tomasbasham/s3apo/internal/region"
)

// Credentials identify the account and bucket a batch is written to. They
// live only as long as the session holding them.
type Credentials struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

// Validate reports every empty field and an unknown region.
func (c Credentials) Validate() error {
	var errs []error
	if c.AccessKey == "" {
		errs = append(errs, errors.New("access key is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket name is required"))
	}
	switch {
	case c.Region == "":
		errs = append(errs, errors.New("region is required"))
	case !region.Valid(c.Region):
		errs = append(errs, fmt.Errorf("unknown region %q", c.Region))
	}
	return errors.Join(errs...)
}

// String never prints the secret key.
func (c Credentials) String() string {
	return fmt.Sprintf("{AccessKey:%s SecretKey:REDACTED Bucket:%s Region:%s}", c.AccessKey, c.Bucket, c.Region)
}

// GoString keeps %#v from leaking the secret key.
func (c Credentials) GoString() string {
	return c.String()
}
