package hub

import "testing"

type greeter interface {
	Greet() string
}

type englishGreeter struct{}

func (englishGreeter) Greet() string { return "hello" }

type frenchGreeter struct{}

func (frenchGreeter) Greet() string { return "bonjour" }

func TestRegisterUnscopedRejectsSecondImplementation(t *testing.T) {
	h := New()
	if err := Register[greeter](h, englishGreeter{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register[greeter](h, frenchGreeter{}); err == nil {
		t.Fatal("expected a second unscoped registration to be rejected")
	}
}

func TestGetUnscoped(t *testing.T) {
	h := New()
	_ = Register[greeter](h, englishGreeter{})

	g, ok := Get[greeter](h)
	if !ok {
		t.Fatal("expected a registered greeter")
	}
	if g.Greet() != "hello" {
		t.Fatalf("unexpected greeting: %s", g.Greet())
	}

	if !HasUnscoped[greeter](h) {
		t.Fatal("expected HasUnscoped to report true")
	}
}

func TestScopedLastWriterWins(t *testing.T) {
	h := New()
	if err := RegisterScoped[greeter](h, "plugin-a", englishGreeter{}); err != nil {
		t.Fatal(err)
	}
	if err := RegisterScoped[greeter](h, "plugin-a", frenchGreeter{}); err != nil {
		t.Fatal(err)
	}

	g, ok := GetScoped[greeter](h, "plugin-a")
	if !ok {
		t.Fatal("expected plugin-a to resolve")
	}
	if g.Greet() != "bonjour" {
		t.Fatalf("expected the second registration to win, got %q", g.Greet())
	}
}

func TestListScopedPreservesRegistrationOrder(t *testing.T) {
	h := New()
	_ = RegisterScoped[greeter](h, "c", englishGreeter{})
	_ = RegisterScoped[greeter](h, "a", englishGreeter{})
	_ = RegisterScoped[greeter](h, "b", englishGreeter{})
	// Re-registering "c" must not move it to the back.
	_ = RegisterScoped[greeter](h, "c", frenchGreeter{})

	entries := ListScoped[greeter](h)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantKeys := []string{"c", "a", "b"}
	for i, want := range wantKeys {
		if entries[i].Key != want {
			t.Fatalf("expected key order %v, got %v", wantKeys, keysOf(entries))
		}
	}
	if entries[0].Value.Greet() != "bonjour" {
		t.Fatalf("expected c's value to reflect the overwrite, got %q", entries[0].Value.Greet())
	}
}

func keysOf(entries []ScopedEntry[greeter]) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

func TestRegisterScopedRequiresKey(t *testing.T) {
	h := New()
	if err := RegisterScoped[greeter](h, "", englishGreeter{}); err == nil {
		t.Fatal("expected an empty scope key to be rejected")
	}
}
