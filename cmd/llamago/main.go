// Command llamago runs autoregressive text generation over a Llama-family
// checkpoint: load weights and vocabulary, encode a prompt, and stream the
// generated continuation to stdout.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("llamago failed")
		os.Exit(1)
	}
}
