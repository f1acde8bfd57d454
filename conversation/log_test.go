package conversation_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tool-runner/conversation"
)

func asst(blocks ...conversation.Block) conversation.Turn {
	return conversation.Turn{Role: conversation.RoleAssistant, Content: blocks}
}

func text(s string) conversation.Text { return conversation.Text{Text: s} }

func toolUse(id string) conversation.ToolUse {
	return conversation.ToolUse{ID: id, Name: "echo", Input: json.RawMessage(`{}`)}
}

func TestLog_MergesConsecutiveAssistantText(t *testing.T) {
	l := conversation.NewLog(conversation.UserText("hi"), conversation.AssistantText("Hello, "))

	require.NoError(t, l.Append(conversation.AssistantText("world.")))

	turns := l.Current()
	require.Len(t, turns, 2)
	assert.Equal(t, asst(text("Hello, world.")), turns[1])
}

func TestLog_MergeKeepsTrailingBlocks(t *testing.T) {
	l := conversation.NewLog(conversation.AssistantText("a"))

	require.NoError(t, l.Append(asst(text("b"), toolUse("t1"))))

	turns := l.Current()
	require.Len(t, turns, 1)
	assert.Equal(t, asst(text("ab"), toolUse("t1")), turns[0])
}

func TestLog_NoMergeWhenNewTurnLeadsWithToolUse(t *testing.T) {
	l := conversation.NewLog(conversation.AssistantText("thinking"))

	require.NoError(t, l.Append(asst(toolUse("t1"))))

	turns := l.Current()
	require.Len(t, turns, 2)
	assert.Equal(t, asst(toolUse("t1")), turns[1])
}

func TestLog_NoMergeAcrossRoles(t *testing.T) {
	l := conversation.NewLog()
	require.NoError(t, l.Append(conversation.UserText("a")))
	require.NoError(t, l.Append(conversation.AssistantText("b")))
	require.NoError(t, l.Append(conversation.UserText("c")))
	assert.Equal(t, 3, l.Len())
}

func TestLog_IncompatibleAssistantShapeIsRejected(t *testing.T) {
	l := conversation.NewLog(asst(text("a"), toolUse("t1")))

	err := l.Append(conversation.AssistantText("b"))
	require.ErrorIs(t, err, conversation.ErrMergeInvariant)

	turns := l.Current()
	require.Len(t, turns, 1)
	assert.Equal(t, asst(text("a"), toolUse("t1")), turns[0])
}

func TestLog_EmptyAssistantTurns(t *testing.T) {
	l := conversation.NewLog(asst())
	require.NoError(t, l.Append(conversation.AssistantText("x")))
	require.NoError(t, l.Append(asst()))

	turns := l.Current()
	require.Len(t, turns, 1)
	assert.Equal(t, asst(text("x")), turns[0])
}

func TestLog_AppendUserFoldsIntoUnansweredTurn(t *testing.T) {
	l := conversation.NewLog()
	l.AppendUser(text("one"))
	l.AppendUser(text("two"))

	turns := l.Current()
	require.Len(t, turns, 1)
	assert.Equal(t, conversation.Turn{Role: conversation.RoleUser, Content: []conversation.Block{text("one"), text("two")}}, turns[0])

	require.NoError(t, l.Append(conversation.AssistantText("ok")))
	l.AppendUser(text("three"))
	assert.Equal(t, 3, l.Len())
}

func TestLog_CurrentIsDefensiveCopy(t *testing.T) {
	l := conversation.NewLog(conversation.Turn{Role: conversation.RoleAssistant, Content: []conversation.Block{toolUse("t1")}})

	snap := l.Current()
	snap[0].Content[0] = text("mutated")
	snap[0].Role = conversation.RoleUser

	again := l.Current()
	assert.Equal(t, asst(toolUse("t1")), again[0])
}

func TestLog_Truncate(t *testing.T) {
	l := conversation.NewLog(
		conversation.UserText("1"),
		conversation.AssistantText("2"),
		conversation.UserText("3"),
		conversation.AssistantText("4"),
	)
	l.Truncate(2)

	turns := l.Current()
	require.Len(t, turns, 2)
	assert.Equal(t, conversation.UserText("3"), turns[0])
}

func TestLog_TrimAssistantTail(t *testing.T) {
	l := conversation.NewLog(
		conversation.UserText("hi"),
		asst(text("Hello, \n")),
	)
	l.TrimAssistantTail()
	require.NoError(t, l.Append(conversation.AssistantText(" world")))

	turns := l.Current()
	require.Len(t, turns, 2)
	assert.Equal(t, conversation.AssistantText("Hello, world"), turns[1])
}

func TestLog_TrimAssistantTailLeavesOtherTurns(t *testing.T) {
	l := conversation.NewLog(conversation.UserText("hi "))
	l.TrimAssistantTail()
	assert.Equal(t, conversation.UserText("hi "), l.Current()[0])

	l = conversation.NewLog(asst(text("a "), toolUse("t1")))
	l.TrimAssistantTail()
	assert.Equal(t, asst(text("a "), toolUse("t1")), l.Current()[0])
}
