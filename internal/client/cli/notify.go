package cli

import (
	"errors"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
)

var errNoTriggerFile = errors.New("no trigger file configured")

// Notify asks a running client to sync by touching its trigger file.
func Notify(c *config.Config) error {
	if c.TriggerFile == "" {
		return errNoTriggerFile
	}
	return filex.Touch(c.TriggerFile)
}
