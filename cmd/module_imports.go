package cmd

// import modules so their init() functions are called

import (
	_ "github.com/praetorian-inc/quasar/pkg/modules/azure/recon"
)
