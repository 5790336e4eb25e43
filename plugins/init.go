// Package plugins registers all built-in plugins.
package plugins

import (
	"firestige.xyz/sipscan/pkg/plugin"
	"firestige.xyz/sipscan/plugins/parser/sip"
)

func init() {
	// Register parser plugins
	plugin.RegisterParser(sip.Name, sip.NewSIPParser)
}
