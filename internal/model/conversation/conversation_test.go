package conversation

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/assistant"
)

func TestConversation_Cost(t *testing.T) {
	Convey("对话总费用始终等于消息费用之和", t, func() {
		conv := New("ws-1", "user-1")
		So(conv.Title, ShouldEqual, DefaultTitle)
		So(conv.Cost.IsZero(), ShouldBeTrue)

		costs := []string{"0.0125", "1.5", "0", "0.0003"}
		expected := cost.Zero
		parent := conv.NewUserMessage(UserMessageInput{Content: "hi", UserID: "user-1", Model: "gpt-4o"})
		So(conv.Cost.IsZero(), ShouldBeTrue)

		for _, raw := range costs {
			c, err := cost.ParseCount(raw)
			So(err, ShouldBeNil)

			reply := conv.NewAssistantMessage("reply", parent, c, "gpt-4o", nil)
			expected = expected.Add(c)
			So(conv.Cost.Equal(expected), ShouldBeTrue)

			parent = conv.NewUserMessage(UserMessageInput{Content: "next", Parent: reply, Model: "gpt-4o"})
			So(conv.Cost.Equal(expected), ShouldBeTrue)
		}
		So(conv.Cost.String(), ShouldEqual, "1.5128")
	})

	Convey("助手消息必须有父消息", t, func() {
		conv := New("ws-1", "user-1")
		So(func() { conv.NewAssistantMessage("x", nil, cost.Zero, "gpt-4o", nil) }, ShouldPanic)
	})
}

func TestConversation_TreeAndLookup(t *testing.T) {
	Convey("消息树的查找与恢复", t, func() {
		conv := New("ws-1", "user-1")
		persona := &assistant.Assistant{ID: "a-1", Name: "Writer", Status: assistant.StatusActive}

		root := conv.NewUserMessage(UserMessageInput{Content: "root", Assistant: persona})
		reply := conv.NewAssistantMessage("answer", root, cost.NewCount(0.5), "gpt-4o", persona)

		Convey("FindMessage 按 ID 定位", func() {
			found, err := conv.FindMessage(reply.ID)
			So(err, ShouldBeNil)
			So(found, ShouldEqual, reply)

			_, err = conv.FindMessage("missing")
			So(err, ShouldEqual, ErrMessageNotFound)
		})

		Convey("Link 根据 ID 重建指针", func() {
			for _, msg := range conv.Messages {
				msg.Parent = nil
				msg.Assistant = nil
			}
			conv.Link(map[string]*assistant.Assistant{"a-1": persona})

			So(reply.Parent, ShouldEqual, root)
			So(root.Parent, ShouldBeNil)
			So(reply.Assistant, ShouldEqual, persona)
			So(conv.AssistantIDs(), ShouldResemble, []string{"a-1"})
		})

		Convey("FirstUserMessage 与 LastMessage", func() {
			So(conv.FirstUserMessage(), ShouldEqual, root)
			So(conv.LastMessage(), ShouldEqual, reply)
		})
	})
}

func TestTruncateTitle(t *testing.T) {
	Convey("标题最多 255 个字符", t, func() {
		long := strings.Repeat("标", 300)
		So([]rune(TruncateTitle(long)), ShouldHaveLength, MaxTitleLength)
		So(TruncateTitle("short"), ShouldEqual, "short")

		conv := New("ws", "u")
		conv.SetTitle(long)
		So([]rune(conv.Title), ShouldHaveLength, MaxTitleLength)
	})
}
