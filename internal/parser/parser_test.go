package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
)

func TestClassifierMetadata(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name string
		line string
		want bool
	}{
		{"chinese colon", "试验编号：TC-204", true},
		{"ascii colon", "Project: wing study", true},
		{"bare colon inside token", "Wing:1", false},
		{"long chinese prose", "计算坐标系说明，X向后Y向右Z向上，全机体轴系", true},
		{"short chinese token", "机翼", false},
		{"data line", "0.0 0.123 0.045", false},
		{"blank", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsMetadata(tt.line))
		})
	}
}

func TestClassifierDataAndSummary(t *testing.T) {
	c := DefaultClassifier()

	assert.True(t, c.IsData("-4.0  0.1 -0.02  0.005"))
	assert.True(t, c.IsData("1e-3 2.0"))
	assert.False(t, c.IsData("Alpha CL CD"))

	assert.True(t, c.IsSummary("CLa=0.085 Cdmin=0.021 Kmax=17.2"))
	assert.False(t, c.IsSummary("0.0 0.1 0.2"))
	assert.False(t, c.IsSummary("Body"))
}

func TestClassifierPartName(t *testing.T) {
	c := DefaultClassifier()

	// Short token with a header next line.
	assert.True(t, c.IsPartName("Wing", "Alpha CL CD Cm"))
	// Short token even without lookahead help.
	assert.True(t, c.IsPartName("Body", ""))
	// A colon inside the token does not demote it to metadata.
	assert.Equal(t, LinePartName, c.Classify("Wing:1", "Alpha CL CD Cm"))
	// A header line is never a part name.
	assert.False(t, c.IsPartName("Alpha CL CD", "0.0 0.1 0.02"))
	// Long prose stays metadata even right above a header.
	assert.False(t, c.IsPartName("这是一段很长的坐标系与来流条件描述文字说明", "Alpha CL CD"))
}

func TestClassifierAliases(t *testing.T) {
	c := DefaultClassifier()
	assert.Equal(t, "Cz", c.Canonical("Cz/FN"))
	assert.Equal(t, "Cx", c.Canonical("CX"))
	assert.Equal(t, "Alpha", c.Canonical("Alpha"))
}

func TestParseMultiBlock(t *testing.T) {
	lines := []string{
		"试验编号：TC-204",
		"Mach: 0.3",
		"",
		"Wing",
		"Alpha Cz/FN Cx Cm",
		"-4.0 -0.21 0.031 0.012",
		"0.0 0.05 0.024 0.003",
		"4.0 0.32 0.029 -0.008",
		"CLa=0.085 Cdmin=0.021",
		"",
		"Body",
		"Alpha CL CD Cm",
		"0.0 0.01 0.05 0.001",
		"4.0 0.04 0.052 0.002",
	}

	p := NewSpecialParser(nil, nil)
	tables, warnings := p.Parse(lines)

	require.Len(t, tables, 2)
	assert.Empty(t, warnings)

	wing := tables["Wing"]
	require.NotNil(t, wing)
	assert.Equal(t, []string{"Alpha", "Cz", "Cx", "Cm"}, wing.Columns)
	assert.Equal(t, 3, wing.NumRows())
	assert.Equal(t, []string{"-4.0", "-0.21", "0.031", "0.012"}, wing.Rows[0])

	body := tables["Body"]
	require.NotNil(t, body)
	assert.Equal(t, 2, body.NumRows())
}

func TestParseSkipsMismatchedRows(t *testing.T) {
	lines := []string{
		"Wing",
		"Alpha CL CD",
		"0.0 0.1 0.02",
		"4.0 0.3", // short row
		"8.0 0.5 0.04",
	}

	p := NewSpecialParser(nil, nil)
	tables, warnings := p.Parse(lines)

	require.Len(t, tables, 1)
	assert.Equal(t, 2, tables["Wing"].NumRows())
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "does not match header width")
}

func TestParseHeaderWithoutData(t *testing.T) {
	lines := []string{
		"Wing",
		"Alpha CL CD",
		"Body",
		"Alpha CL CD",
		"0.0 0.1 0.02",
	}

	p := NewSpecialParser(nil, nil)
	tables, warnings := p.Parse(lines)

	require.Len(t, tables, 1)
	assert.NotNil(t, tables["Body"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "no data rows")
}

func TestPartNames(t *testing.T) {
	lines := []string{
		"条件说明：标准大气",
		"Wing",
		"Alpha CL CD",
		"0.0 0.1 0.02",
		"Tail",
		"Alpha CL CD",
		"0.0 0.0 0.01",
	}

	p := NewSpecialParser(nil, nil)
	assert.Equal(t, []string{"Wing", "Tail"}, p.PartNames(lines))
}

func TestDecodeTextFallbackChain(t *testing.T) {
	utf8Text, enc, err := DecodeText([]byte("Alpha CL CD\n0.0 0.1 0.02\n"))
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)
	assert.Contains(t, utf8Text, "Alpha")

	// GBK bytes for a Chinese label, invalid as UTF-8.
	gbkBytes := []byte{0xBB, 0xFA, 0xD2, 0xED} // 机翼
	text, enc, err := DecodeText(gbkBytes)
	require.NoError(t, err)
	assert.Equal(t, EncodingGBK, enc)
	assert.Equal(t, "机翼", text)

	// A lone 0x81 is invalid UTF-8 and an incomplete GBK sequence.
	_, enc, err = DecodeText([]byte{'a', 0x81})
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, enc)

	// NUL bytes mean binary content, no encoding applies.
	_, _, err = DecodeText([]byte{'a', 0x00, 'b'})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeFormat))
}

func TestReadLinesBinaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.dat")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0xFF, 0xFE, 0x00}, 0o644))

	_, _, err := ReadLines(path, 0)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeFormat))
}

func TestParseFileEndToEnd(t *testing.T) {
	content := "风洞试验数据：第3车次\nWing\nAlpha Cz/FN Cx Cm\n0.0 0.05 0.024 0.003\n4.0 0.32 0.029 -0.008\n"
	path := filepath.Join(t.TempDir(), "run3.mtfmt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := NewSpecialParser(nil, nil)
	tables, warnings, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Contains(t, tables, "Wing")
	assert.Equal(t, []string{"Alpha", "Cz", "Cx", "Cm"}, tables["Wing"].Columns)
}

func TestDetectSpecialFormat(t *testing.T) {
	dir := t.TempDir()

	byExt := filepath.Join(dir, "a.mtfmt")
	require.NoError(t, os.WriteFile(byExt, []byte("x"), 0o644))
	assert.True(t, DetectSpecialFormat(byExt, nil, 0))

	csvPath := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Alpha,CL\n0,0.1\n"), 0o644))
	assert.False(t, DetectSpecialFormat(csvPath, nil, 0))

	probe := filepath.Join(dir, "c.log")
	require.NoError(t, os.WriteFile(probe,
		[]byte("Wing\nAlpha CL CD\n0.0 0.1 0.02\n"), 0o644))
	assert.True(t, DetectSpecialFormat(probe, nil, 0))

	plain := filepath.Join(dir, "d.log")
	require.NoError(t, os.WriteFile(plain, []byte("nothing to see\nhere\n"), 0o644))
	assert.False(t, DetectSpecialFormat(plain, nil, 0))
}

func TestCSVRowReaderChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	content := "junk line\nAlpha,Fx,Fy\n0,1,2\n1,3,4\n2,5,6\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := OpenRowReader(path, 1)
	require.NoError(t, err)
	defer r.Close()

	chunk, err := r.ReadChunk(2)
	require.NoError(t, err)
	require.Len(t, chunk, 2)
	assert.Equal(t, []string{"Alpha", "Fx", "Fy"}, chunk[0])

	chunk, err = r.ReadChunk(10)
	require.NoError(t, err)
	assert.Len(t, chunk, 2)

	chunk, err = r.ReadChunk(10)
	require.NoError(t, err)
	assert.Empty(t, chunk)
}

func TestTableColumnIndex(t *testing.T) {
	tbl := &Table{Columns: []string{"Alpha", "Cz", "Cx"}}
	assert.Equal(t, 1, tbl.ColumnIndex("Cz"))
	assert.Equal(t, -1, tbl.ColumnIndex("Cm"))
}
