package command

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input     string
		ok        bool
		name      string
		args      int
		remainder string
	}{
		{input: "hello", ok: false},
		{input: "/", ok: true, name: ""},
		{input: "  /rooboost.browseTasks", ok: true, name: "rooboost.browseTasks"},
		{input: "/rooboost.loadPlugin  /tmp/a b.yaml ", ok: true, name: "rooboost.loadPlugin", args: 2, remainder: "/tmp/a b.yaml"},
	}
	for _, tc := range tests {
		cmd, ok := Parse(tc.input)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v", tc.input, tc.ok)
		}
		if !ok {
			continue
		}
		if cmd.Name != tc.name || len(cmd.Args) != tc.args || cmd.Remainder != tc.remainder {
			t.Fatalf("%q: unexpected command %+v", tc.input, cmd)
		}
	}
}

func TestParseLineAcceptsBareNames(t *testing.T) {
	cmd := ParseLine("helloWorld.sayHello now")
	if cmd.Name != "helloWorld.sayHello" || len(cmd.Args) != 1 || cmd.Args[0] != "now" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd := ParseLine("   "); cmd.Name != "" {
		t.Fatalf("expected empty name, got %+v", cmd)
	}
}
