package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashlang/ashc/internal/token"
)

func TestScanSourceReturnsTokensAndSingleSectionName(t *testing.T) {
	toks, sections, err := scanSource("int x = 1;", "mod.ash")
	require.NoError(t, err)
	require.Equal(t, []string{"mod.ash"}, sections)
	require.NotEmpty(t, toks)
	require.Equal(t, token.TKEOF, toks[len(toks)-1].Kind)
}

func TestScanSourcePropagatesScannerError(t *testing.T) {
	_, _, err := scanSource("\"unterminated", "mod.ash")
	require.Error(t, err)
}
