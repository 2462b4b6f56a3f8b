package sysctl

import "testing"

func TestExecuteRestartIsANoopHandoff(t *testing.T) {
	if err := Execute(Restart); err != nil {
		t.Fatalf("Execute(Restart): %v", err)
	}
}

func TestExecuteUnknownActionIsUnsupported(t *testing.T) {
	if err := Execute(Action(99)); err != ErrUnsupported {
		t.Fatalf("got %v, want ErrUnsupported", err)
	}
}

func TestActionString(t *testing.T) {
	cases := map[Action]string{
		Reboot:   "Reboot",
		Shutdown: "Shutdown",
		Restart:  "Restart",
	}
	for action, want := range cases {
		if got := action.String(); got != want {
			t.Fatalf("Action(%d).String() = %q, want %q", action, got, want)
		}
	}
}
