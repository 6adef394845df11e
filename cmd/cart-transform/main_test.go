package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRunWritesOperations(t *testing.T) {
	in := strings.NewReader(`{"cart":{"lines":[{"id":"gid://shopify/CartLine/1","merchandise":{"__typename":"ProductVariant","id":"gid://shopify/ProductVariant/1"},"fabricLength":{"value":"12.50"}}]}}`)
	var out bytes.Buffer

	require.NoError(t, run(in, &out, zerolog.Nop()))
	require.JSONEq(t, `{"operations":[{"update":{"cartLineId":"gid://shopify/CartLine/1","price":{"adjustment":{"fixedPricePerUnit":{"amount":"12.50"}}}}}]}`, out.String())
}

func TestRunNoChanges(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(strings.NewReader(`{"cart":{"lines":[]}}`), &out, zerolog.Nop()))
	require.JSONEq(t, `{"operations":[]}`, out.String())
}

func TestRunRejectsMalformedInput(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, run(strings.NewReader(`{"cart":{}}`), &out, zerolog.Nop()))
	require.Empty(t, out.String())
}
