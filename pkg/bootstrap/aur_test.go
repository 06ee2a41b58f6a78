package bootstrap

import "testing"

func TestJoinArgsSpaceSeparates(t *testing.T) {
	got := joinArgs([]string{"yay-bin", "paru-git"})
	want := "yay-bin paru-git"
	if got != want {
		t.Fatalf("joinArgs() = %q, want %q", got, want)
	}
}

func TestJoinArgsEmpty(t *testing.T) {
	if got := joinArgs(nil); got != "" {
		t.Fatalf("joinArgs(nil) = %q, want empty string", got)
	}
}
