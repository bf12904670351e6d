package ghci

import "testing"

func TestParseEvalCommands_LineForm(t *testing.T) {
	cmds := ParseEvalCommands("-- $> foo\n")
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Command != "foo" || cmds[0].DisplayCommand != "foo" || cmds[0].Line != 1 {
		t.Errorf("got %+v", cmds[0])
	}
}

func TestParseEvalCommands_LineFormLeadingWhitespace(t *testing.T) {
	cmds := ParseEvalCommands("   -- $> foo\n")
	if len(cmds) != 1 || cmds[0].Command != "foo" {
		t.Fatalf("got %+v", cmds)
	}
}

func TestParseEvalCommands_MultilineForm(t *testing.T) {
	src := "{- $>\nhello\n<$ -}\n"
	cmds := ParseEvalCommands(src)
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	want := ":{\nhello\n:}"
	if cmds[0].Command != want {
		t.Errorf("Command = %q, want %q", cmds[0].Command, want)
	}
	if cmds[0].DisplayCommand != "hello" {
		t.Errorf("DisplayCommand = %q, want %q", cmds[0].DisplayCommand, "hello")
	}
	if cmds[0].Line != 1 {
		t.Errorf("Line = %d, want 1", cmds[0].Line)
	}
}

func TestParseEvalCommands_MultilineFormWithInlineStart(t *testing.T) {
	src := "{- $> puppy\ndoggy\nkitty\ncat\n<$ -}\n"
	cmds := ParseEvalCommands(src)
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	wantCommand := ":{\npuppy\ndoggy\nkitty\ncat\n:}"
	wantDisplay := "puppy\ndoggy\nkitty\ncat"
	if cmds[0].Command != wantCommand {
		t.Errorf("Command = %q, want %q", cmds[0].Command, wantCommand)
	}
	if cmds[0].DisplayCommand != wantDisplay {
		t.Errorf("DisplayCommand = %q, want %q", cmds[0].DisplayCommand, wantDisplay)
	}
}

func TestParseEvalCommands_MultilineFormPreservesIndentation(t *testing.T) {
	src := "hello =\n    {- $>\n    but this does!\n    <$ -}\n    0\n"
	cmds := ParseEvalCommands(src)
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	wantCommand := ":{\n    but this does!\n:}"
	if cmds[0].Command != wantCommand {
		t.Errorf("Command = %q, want %q", cmds[0].Command, wantCommand)
	}
	if cmds[0].DisplayCommand != "but this does!" {
		t.Errorf("DisplayCommand = %q, want %q", cmds[0].DisplayCommand, "but this does!")
	}
}

func TestParseEvalCommands_IgnoresMarkerMidLine(t *testing.T) {
	src := `oozy "{- $>
this does not get parsed as an eval command
<$ -}"
`
	cmds := ParseEvalCommands(src)
	if len(cmds) != 0 {
		t.Fatalf("got %d commands, want 0: %+v", len(cmds), cmds)
	}
}

func TestParseEvalCommands_MultipleCommandsInOneFile(t *testing.T) {
	src := `module Foo where

-- $> myFunc 0
myFunc :: Int -> Int
myFunc = id

{- $>
hello
<$ -}
-- $> goodbye
`
	cmds := ParseEvalCommands(src)
	if len(cmds) != 3 {
		t.Fatalf("got %d commands, want 3: %+v", len(cmds), cmds)
	}
	if cmds[0].DisplayCommand != "myFunc 0" || cmds[0].Line != 3 {
		t.Errorf("cmds[0] = %+v", cmds[0])
	}
	if cmds[1].DisplayCommand != "hello" || cmds[1].Line != 7 {
		t.Errorf("cmds[1] = %+v", cmds[1])
	}
	if cmds[2].DisplayCommand != "goodbye" || cmds[2].Line != 10 {
		t.Errorf("cmds[2] = %+v", cmds[2])
	}
}

func TestParseEvalCommands_UnterminatedBlockIsIgnored(t *testing.T) {
	cmds := ParseEvalCommands("{- $>\nhello\n")
	if len(cmds) != 0 {
		t.Fatalf("got %d commands, want 0: %+v", len(cmds), cmds)
	}
}
