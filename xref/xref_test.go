package xref

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildClassicPDF assembles a minimal PDF with a classic xref table,
// computing byte offsets as it writes, so the fixture cannot drift out of
// sync with the text.
func buildClassicPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := map[int]int{}
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R >>")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 4\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d %05d n \n", offsets[i], 0)
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)
	return buf.Bytes()
}

func TestLocateStartXRef(t *testing.T) {
	data := buildClassicPDF()
	offset, err := LocateStartXRef(data)
	require.NoError(t, err)
	assert.True(t, offset > 0 && offset < int64(len(data)))
}

func TestLoadClassicXRefTable(t *testing.T) {
	data := buildClassicPDF()
	result, err := Load(data)
	require.NoError(t, err)
	assert.False(t, result.Recovered)
	assert.Equal(t, 1, result.Trailer.Root.Num)
	require.Contains(t, result.Table, 1)
	require.Contains(t, result.Table, 2)
	require.Contains(t, result.Table, 3)
	assert.Equal(t, InUse, result.Table[1].Kind)
	assert.Equal(t, Free, result.Table[0].Kind)
}

func TestBruteForceRecoveryOnMissingXref(t *testing.T) {
	data := buildClassicPDF()
	// Corrupt the startxref offset so the normal chain walk fails.
	corrupted := bytes.Replace(data, []byte("startxref"), []byte("startxrof"), 1)

	result, err := Load(corrupted)
	require.NoError(t, err)
	assert.True(t, result.Recovered)
	assert.Equal(t, 1, result.Trailer.Root.Num)
	require.Contains(t, result.Table, 1)
	require.Contains(t, result.Table, 3)
}

func TestBruteForceRecoveryDirect(t *testing.T) {
	data := buildClassicPDF()
	table, trailer, err := BruteForceRecovery(data)
	require.NoError(t, err)
	assert.Equal(t, 1, trailer.Root.Num)
	assert.Contains(t, table, 1)
	assert.Contains(t, table, 2)
	assert.Contains(t, table, 3)
}
