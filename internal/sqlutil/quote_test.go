package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", "`users`"},
		{"user_data", "`user_data`"},
		{"select", "`select`"},         // reserved word
		{"first name", "`first name`"}, // space in name
		{"user`data", "`user``data`"},  // backtick in name
		{"a`b`c", "`a``b``c`"},         // multiple backticks
		{"", "``"},                     // empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "'hello'"},
		{"it's", "'it''s'"},              // single quote
		{"a'b'c", "'a''b''c'"},           // multiple quotes
		{"hello world", "'hello world'"}, // space
		{"", "''"},                       // empty string
		{"password123", "'password123'"}, // typical password
		{"pass'word", "'pass''word'"},    // quote in password
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteString(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDialectQuoteIdentifier(t *testing.T) {
	tests := []struct {
		dialect  Dialect
		input    string
		expected string
	}{
		{DialectMySQL, "users", "`users`"},
		{DialectPostgres, "users", `"users"`},
		{DialectPostgres, `a"b`, `"a""b"`},
		{DialectSQLite, "city_id", `"city_id"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect)+"/"+tt.input, func(t *testing.T) {
			if got := tt.dialect.QuoteIdentifier(tt.input); got != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input    string
		expected Dialect
		wantErr  bool
	}{
		{"mysql", DialectMySQL, false},
		{"TiDB", DialectMySQL, false},
		{"postgresql", DialectPostgres, false},
		{"sqlite3", DialectSQLite, false},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDialect(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDialect(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDialect(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseDialect(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
