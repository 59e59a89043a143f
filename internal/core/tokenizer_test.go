package core

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []RawRow
	}{
		{
			name:  "simple rows with LF",
			input: "a,b\nc,d\n",
			want:  []RawRow{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "CRLF is one terminator",
			input: "a,b\r\nc,d\r\n",
			want:  []RawRow{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "lone CR terminates",
			input: "a,b\rc,d",
			want:  []RawRow{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "final line without terminator",
			input: "a,b\nc,d",
			want:  []RawRow{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "unquoted fields are trimmed",
			input: "  a  ,\tb \n",
			want:  []RawRow{{"a", "b"}},
		},
		{
			name:  "quoted comma",
			input: `"Dupont, Jean",x` + "\n",
			want:  []RawRow{{"Dupont, Jean", "x"}},
		},
		{
			name:  "escaped quote",
			input: `"He said ""hi""",b` + "\n",
			want:  []RawRow{{`He said "hi"`, "b"}},
		},
		{
			name:  "quoted newline",
			input: "\"line1\nline2\",b\nc,d\n",
			want:  []RawRow{{"line1\nline2", "b"}, {"c", "d"}},
		},
		{
			name:  "quoted CRLF kept verbatim",
			input: "\"a\r\nb\",c\r\n",
			want:  []RawRow{{"a\r\nb", "c"}},
		},
		{
			name:  "quoted content keeps its spaces",
			input: `"  padded  ",b`,
			want:  []RawRow{{"  padded  ", "b"}},
		},
		{
			name:  "empty quoted field",
			input: `"",b`,
			want:  []RawRow{{"", "b"}},
		},
		{
			name:  "blank lines are dropped",
			input: "a,b\n\n   \n,,\n\" \",\nc,d\n",
			want:  []RawRow{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "trailing empty field",
			input: "a,\n",
			want:  []RawRow{{"a", ""}},
		},
		{
			name:  "quote inside unquoted field is literal",
			input: `ab"c,d`,
			want:  []RawRow{{`ab"c`, "d"}},
		},
		{
			name:  "padding after closing quote is ignored",
			input: `"a"  ,b`,
			want:  []RawRow{{"a", "b"}},
		},
		{
			name:  "unterminated quote runs to end",
			input: "\"abc,def\nghi",
			want:  []RawRow{{"abc,def\nghi"}},
		},
		{
			name:  "accented content untouched",
			input: "Prénom,Nom\nÉlodie,Gagné\n",
			want:  []RawRow{{"Prénom", "Nom"}, {"Élodie", "Gagné"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenize_Deterministic(t *testing.T) {
	input := strings.Repeat("\"x, y\",2\r\n", 50)
	first := Tokenize(input)
	for i := 0; i < 3; i++ {
		if !reflect.DeepEqual(first, Tokenize(input)) {
			t.Fatal("Tokenize returned different rows for the same input")
		}
	}
	if len(first) != 50 {
		t.Errorf("got %d rows, want 50", len(first))
	}
}

func TestSplitHeader(t *testing.T) {
	tests := []struct {
		name    string
		rows    []RawRow
		wantErr bool
	}{
		{name: "no rows", rows: nil, wantErr: true},
		{name: "header only", rows: []RawRow{{"a"}}, wantErr: true},
		{name: "header and data", rows: []RawRow{{"a"}, {"1"}}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, data, err := SplitHeader(tt.rows)
			if tt.wantErr {
				if _, ok := err.(*StructuralError); !ok {
					t.Fatalf("err = %v, want *StructuralError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(header) != 1 || len(data) != 1 {
				t.Errorf("header=%v data=%v", header, data)
			}
		})
	}
}
