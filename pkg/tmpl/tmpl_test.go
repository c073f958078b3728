package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		data    any
		want    string
		wantErr bool
	}{
		{
			name: "simple substitution",
			tmpl: "Merge {{ .Source }}",
			data: map[string]string{"Source": "feature"},
			want: "Merge feature",
		},
		{
			name: "struct data",
			tmpl: "Merge branch '{{ .Source }}' into {{ .Target }}",
			data: struct {
				Source string
				Target string
			}{Source: "feature", Target: "main"},
			want: "Merge branch 'feature' into main",
		},
		{
			name: "no variables",
			tmpl: "static message",
			data: nil,
			want: "static message",
		},
		{
			name:    "missing key errors",
			tmpl:    "{{ .Missing }}",
			data:    map[string]string{"Source": "feature"},
			wantErr: true,
		},
		{
			name:    "invalid template syntax",
			tmpl:    "{{ .Source }",
			data:    map[string]string{"Source": "feature"},
			wantErr: true,
		},
		{
			name: "join function",
			tmpl: `{{ join .Files ", " }}`,
			data: map[string][]string{"Files": {"a.txt", "b.txt"}},
			want: "a.txt, b.txt",
		},
		{
			name: "case functions",
			tmpl: "{{ .Strategy | lower }} {{ .Strategy | upper }}",
			data: map[string]string{"Strategy": "Squash"},
			want: "squash SQUASH",
		},
		{
			name: "trim function",
			tmpl: "[{{ .Message | trim }}]",
			data: map[string]string{"Message": "  padded \n"},
			want: "[padded]",
		},
		{
			name: "short revision",
			tmpl: "{{ .Revision | short }}",
			data: map[string]string{"Revision": "0123456789abcdef0123456789abcdef01234567"},
			want: "0123456789ab",
		},
		{
			name: "short keeps short ids",
			tmpl: "{{ .Revision | short }}",
			data: map[string]string{"Revision": "42"},
			want: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("Merge {{ .Source }} into {{ .Target | upper }}"))
	assert.Error(t, Check("{{ .Source "))
	assert.Error(t, Check("{{ unknownFunc .Source }}"))
}
