// Command cart-transform is the function the platform invokes at checkout. It
// reads the RunInput document on stdin and writes the FunctionRunResult on stdout.
package main

import (
	"bufio"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/fabric-pricing/internal/cartxform"
	"github.com/noah-isme/fabric-pricing/internal/obs"
)

func main() {
	level := os.Getenv("OBS_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := obs.NewLoggerTo(os.Stderr, "json", level).With().Str("component", "cart-transform").Logger()
	if err := run(os.Stdin, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Msg("cart transform failed")
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer, logger zerolog.Logger) error {
	input, err := cartxform.Decode(bufio.NewReader(in))
	if err != nil {
		return err
	}
	result := cartxform.Run(input)
	logger.Debug().Int("lines", len(input.Cart.Lines)).Int("operations", len(result.Operations)).Msg("cart transformed")

	w := bufio.NewWriter(out)
	if err := cartxform.Encode(w, result); err != nil {
		return err
	}
	return w.Flush()
}
