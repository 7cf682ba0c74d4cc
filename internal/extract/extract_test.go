package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "plain cell",
			doc:  `<tr><td>Uraian Pekerjaan</td><td>Jasa Iklan Koran</td></tr>`,
			want: "Jasa Iklan Koran",
		},
		{
			name: "cell with attributes",
			doc:  `<tr><td class="label">Uraian Pekerjaan</td><td class="value" colspan="2">Publikasi Radio</td></tr>`,
			want: "Publikasi Radio",
		},
		{
			name: "upper case tags",
			doc:  `<TR><TD>Uraian Pekerjaan</TD><TD>Belanja Jasa</TD></TR>`,
			want: "Belanja Jasa",
		},
		{
			name: "whitespace trimmed",
			doc:  "<td>Uraian Pekerjaan</td>\n<td>\n  Sosialisasi  \n</td>",
			want: "Sosialisasi",
		},
		{
			name: "inner markup kept",
			doc:  `<td>Uraian Pekerjaan</td><td><b>Iklan</b> TV</td>`,
			want: "<b>Iklan</b> TV",
		},
		{
			name: "first occurrence wins",
			doc:  `<td>Uraian Pekerjaan</td><td>pertama</td><td>Uraian Pekerjaan</td><td>kedua</td>`,
			want: "pertama",
		},
		{
			name: "td prefixed tag skipped",
			doc:  `<th>Uraian Pekerjaan</th><tdata>x</tdata><td>kedua</td>`,
			want: "kedua",
		},
		{
			name: "only td prefixed tags",
			doc:  `<th>Uraian Pekerjaan</th><tdata>x</tdata>`,
			want: "",
		},
		{
			name: "missing label",
			doc:  `<td>Nama Paket</td><td>Jasa</td>`,
			want: "",
		},
		{
			name: "missing cell",
			doc:  `<p>Uraian Pekerjaan</p>`,
			want: "",
		},
		{
			name: "missing closing tag",
			doc:  `<td>Uraian Pekerjaan</td><td>terpotong`,
			want: "",
		},
		{
			name: "empty document",
			doc:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ScanExtractor{}.Extract([]byte(tt.doc)))
		})
	}
}

func TestDOMExtractor(t *testing.T) {
	t.Parallel()

	doc := `<html><body><table>
<tr><td>Nama Paket</td><td>Belanja Jasa Iklan</td></tr>
<tr><th>Uraian Pekerjaan</th><td> Penayangan <b>iklan</b> di TV lokal </td></tr>
</table></body></html>`

	require.Equal(t, "Penayangan iklan di TV lokal", DOMExtractor{}.Extract([]byte(doc)))
	require.Empty(t, DOMExtractor{}.Extract([]byte(`<table><tr><td>Nama Paket</td><td>x</td></tr></table>`)))
	require.Empty(t, DOMExtractor{Label: "Lokasi"}.Extract([]byte(doc)))
}

func TestNew(t *testing.T) {
	t.Parallel()

	ex, err := New("", DefaultLabel)
	require.NoError(t, err)
	require.IsType(t, ScanExtractor{}, ex)

	ex, err = New("DOM", DefaultLabel)
	require.NoError(t, err)
	require.IsType(t, DOMExtractor{}, ex)

	_, err = New("regex", DefaultLabel)
	require.Error(t, err)
}
