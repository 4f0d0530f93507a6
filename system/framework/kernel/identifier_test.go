package kernel

import "testing"

func TestParseSchemaIdentifierRoundTrip(t *testing.T) {
	const text = "module.r3e.modrun.builtin.logger.v1"
	id, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !id.IsSchema() || id.IsInstance() {
		t.Fatalf("id = %+v, want schema identifier", id)
	}
	if got := id.String(); got != text {
		t.Fatalf("String() = %q, want %q", got, text)
	}
}

func TestParseInstanceIdentifierRoundTrip(t *testing.T) {
	const text = "module.r3e.modrun.builtin.logger.v1~primary"
	id, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !id.IsInstance() || id.IsSchema() {
		t.Fatalf("id = %+v, want instance identifier", id)
	}
	if got := id.String(); got != text {
		t.Fatalf("String() = %q, want %q", got, text)
	}
}

func TestParseRejectsWrongSegmentCount(t *testing.T) {
	_, err := Parse("module.r3e.modrun.builtin.v1")
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
	if _, ok := err.(*MalformedIdentifierError); !ok {
		t.Fatalf("err = %T, want *MalformedIdentifierError", err)
	}
}

func TestParseRejectsEmptySegment(t *testing.T) {
	_, err := Parse("module.r3e..builtin.logger.v1")
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
}

func TestParseRejectsUppercaseSegment(t *testing.T) {
	_, err := Parse("Module.r3e.modrun.builtin.logger.v1")
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
}

func TestParseRejectsMalformedVersion(t *testing.T) {
	_, err := Parse("module.r3e.modrun.builtin.logger.1")
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
}

func TestParseRejectsEmptyInstanceTail(t *testing.T) {
	_, err := Parse("module.r3e.modrun.builtin.logger.v1~")
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
}

func TestParseRejectsDoubleInstanceSeparator(t *testing.T) {
	_, err := Parse("module.r3e.modrun.builtin.logger.v1~a~b")
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
}

func TestSchemaPrefixDropsInstance(t *testing.T) {
	id := MustParse("module.r3e.modrun.builtin.logger.v1~primary")
	schema := id.SchemaPrefix()
	if !schema.IsSchema() {
		t.Fatalf("schema = %+v, want schema identifier", schema)
	}
	want := MustParse("module.r3e.modrun.builtin.logger.v1")
	if schema != want {
		t.Fatalf("SchemaPrefix() = %+v, want %+v", schema, want)
	}
}

func TestMatchesSchema(t *testing.T) {
	schema := MustParse("module.r3e.modrun.builtin.logger.v1")
	instance := MustParse("module.r3e.modrun.builtin.logger.v1~primary")
	other := MustParse("module.r3e.modrun.builtin.cache.v1~primary")

	if !schema.MatchesSchema(instance) {
		t.Fatal("MatchesSchema() = false, want true")
	}
	if schema.MatchesSchema(other) {
		t.Fatal("MatchesSchema() = true, want false")
	}
}

func TestMustParsePanicsOnInvalidText(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustParse() did not panic on invalid text")
		}
	}()
	MustParse("not-an-identifier")
}
