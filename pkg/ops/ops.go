package ops

import (
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// common gives every operation a settable logger that defaults to the
// process-wide one. Embed it and call L().
type common struct {
	logger hclog.Logger
}

func (c *common) L() hclog.Logger {
	if c.logger == nil {
		c.logger = hclog.L()
	}

	return c.logger
}

func (c *common) SetLogger(logger hclog.Logger) {
	c.logger = logger
}

// track annotates unexpected system errors with a stack so debug runs show
// where they surfaced.
func track(err error) error {
	return errors.WithStack(err)
}
