package sip

import (
	gosiplog "github.com/ghettovoice/gosip/log"

	"firestige.xyz/sipscan/internal/log"
)

// newParserLogger bridges gosip's logger onto the process logrus entry.
func newParserLogger() gosiplog.Logger {
	return gosiplog.NewLogrusLogger(log.GetLogger().Entry(), "sip.parser", nil)
}
