package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/ai/provider/elevenlabs"
	"aisuite/internal/model/library"
	"aisuite/internal/model/workspace"
	"aisuite/internal/pkg/cache"
)

type fakeImageGen struct{ calls int }

func (f *fakeImageGen) SupportsModel(m ai.Model) bool { return m == "img-model" }
func (f *fakeImageGen) Models() []ai.Model            { return []ai.Model{"img-model"} }

func (f *fakeImageGen) GenerateImage(_ context.Context, _ ai.Model, req ai.ImageRequest) (*ai.ImageResult, error) {
	f.calls++
	if _, err := req.Params.Prompt(); err != nil {
		return nil, err
	}
	return &ai.ImageResult{Image: []byte("png-bytes"), ContentType: "image/png", Cost: *credits("0.04"), Params: req.Params.Clone()}, nil
}

type fakeSpeech struct{}

func (f *fakeSpeech) SupportsModel(m ai.Model) bool { return m == "voice-model" }
func (f *fakeSpeech) Models() []ai.Model            { return []ai.Model{"voice-model"} }

func (f *fakeSpeech) GenerateSpeech(_ context.Context, voice ai.Voice, params ai.Params) (*ai.SpeechResult, error) {
	prompt, err := params.Prompt()
	if err != nil {
		return nil, err
	}
	out := params.Clone()
	out["voice"] = voice.ExternalID
	return &ai.SpeechResult{Audio: []byte("mp3"), ContentType: "audio/mpeg", Cost: cost.NewCount(float64(len(prompt))), Params: out}, nil
}

type countingCatalog struct {
	voices []elevenlabs.VoiceInfo
	calls  int
}

func (c *countingCatalog) Voices(context.Context) ([]elevenlabs.VoiceInfo, error) {
	c.calls++
	return c.voices, nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) SupportsModel(m ai.Model) bool { return m == "whisper-1" }
func (fakeTranscriber) Models() []ai.Model            { return []ai.Model{"whisper-1"} }

func (fakeTranscriber) GenerateTranscription(_ context.Context, _ ai.Model, audio io.Reader, _ string, _ ai.Params) (*ai.TranscriptionResult, error) {
	if _, err := io.ReadAll(audio); err != nil {
		return nil, err
	}
	return &ai.TranscriptionResult{
		Text:     "hello world",
		Language: "english",
		Duration: 12.5,
		Segments: []ai.Segment{{Start: 0, End: 12.5, Text: "hello world"}},
		Cost:     *credits("0.125"),
	}, nil
}

type fakeFiles struct {
	saved []library.ItemType
	err   error
}

func (f *fakeFiles) SaveLibraryFile(_ context.Context, itemType library.ItemType, data []byte, contentType string) (*library.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, itemType)
	return &library.File{StorageKey: string(itemType) + "/x", URL: "http://cdn/" + string(itemType) + "/x", ContentType: contentType, Size: int64(len(data))}, nil
}

type libraryFixture struct {
	svc        *LibraryService
	images     *fakeImageGen
	chat       *fakeChat
	files      *fakeFiles
	items      *fakeLibrary
	catalog    *countingCatalog
	cache      *memoryCache
	workspaces *fakeWorkspaces
	dispatcher *recordingDispatcher
}

func newLibraryFixture() *libraryFixture {
	f := &libraryFixture{
		images:     &fakeImageGen{},
		chat:       &fakeChat{model: "text-model", tokens: []string{"Once", " upon"}, result: ai.Result{Cost: *credits("0.01")}},
		files:      &fakeFiles{},
		items:      newFakeLibrary(),
		catalog:    &countingCatalog{voices: []elevenlabs.VoiceInfo{{ExternalID: "v1", Name: "Rachel", Model: "voice-model"}}},
		cache:      newMemoryCache(),
		workspaces: newFakeWorkspaces(&workspace.Workspace{ID: "ws-1", CreditCount: credits("5")}),
		dispatcher: &recordingDispatcher{},
	}

	factory := ai.NewFactory().
		MustRegister(ai.CapabilityImage, f.images).
		MustRegister(ai.CapabilitySpeech, &fakeSpeech{}).
		MustRegister(ai.CapabilityTranscription, fakeTranscriber{}).
		MustRegister(ai.CapabilityCompletion, f.chat)

	f.svc = NewLibraryService(factory, NewBilling(f.workspaces, f.dispatcher), f.items, f.files, f.catalog, f.cache)
	return f
}

func TestLibraryService_Image(t *testing.T) {
	actor := Actor{WorkspaceID: "ws-1", UserID: "user-1"}

	Convey("生成图片并保存到 CDN", t, func() {
		f := newLibraryFixture()
		item, err := f.svc.GenerateImage(context.Background(), actor, ImageInput{
			Model:  "img-model",
			Params: ai.Params{"prompt": "a red fox in the snow"},
		})
		So(err, ShouldBeNil)
		So(item.Type, ShouldEqual, library.ItemTypeImage)
		So(item.File.URL, ShouldEqual, "http://cdn/image/x")
		So(item.Title, ShouldEqual, "a red fox in the snow")
		So(f.items.items[item.ID], ShouldNotBeNil)
		So(f.workspaces.credit("ws-1").String(), ShouldEqual, "4.96")
		So(f.dispatcher.events[0].(*workspace.CreditUsageEvent).Source, ShouldEqual, SourceImage)
	})

	Convey("缺少 prompt", t, func() {
		f := newLibraryFixture()
		_, err := f.svc.GenerateImage(context.Background(), actor, ImageInput{Model: "img-model", Params: ai.Params{}})
		So(errors.Is(err, ai.ErrInvalidParameters), ShouldBeTrue)
		So(f.workspaces.deducts, ShouldBeEmpty)
	})

	Convey("CDN 写入失败时不扣费", t, func() {
		f := newLibraryFixture()
		f.files.err = errors.New("disk full")
		_, err := f.svc.GenerateImage(context.Background(), actor, ImageInput{Model: "img-model", Params: ai.Params{"prompt": "x"}})
		So(err, ShouldNotBeNil)
		So(f.items.items, ShouldBeEmpty)
		So(f.workspaces.deducts, ShouldBeEmpty)
	})

	Convey("积分耗尽", t, func() {
		f := newLibraryFixture()
		f.workspaces.items["ws-1"].CreditCount = credits("0")
		_, err := f.svc.GenerateImage(context.Background(), actor, ImageInput{Model: "img-model", Params: ai.Params{"prompt": "x"}})
		So(errors.Is(err, ai.ErrInsufficientCredits), ShouldBeTrue)
		So(f.images.calls, ShouldEqual, 0)
	})
}

func TestLibraryService_SpeechAndVoices(t *testing.T) {
	actor := Actor{WorkspaceID: "ws-1", UserID: "user-1"}

	Convey("声音列表只请求一次，之后命中缓存", t, func() {
		f := newLibraryFixture()
		for i := 0; i < 3; i++ {
			voices, err := f.svc.Voices(context.Background())
			So(err, ShouldBeNil)
			So(voices, ShouldHaveLength, 1)
			So(voices[0].Name, ShouldEqual, "Rachel")
		}
		So(f.catalog.calls, ShouldEqual, 1)
		So(f.cache.sets, ShouldEqual, 1)
		So(f.cache.data, ShouldContainKey, cache.VoiceListKey)
	})

	Convey("未指定模型时使用声音自带的模型", t, func() {
		f := newLibraryFixture()
		item, err := f.svc.GenerateSpeech(context.Background(), actor, SpeechInput{
			VoiceID: "v1",
			Params:  ai.Params{"prompt": "hello"},
		})
		So(err, ShouldBeNil)
		So(item.Model, ShouldEqual, "voice-model")
		So(item.Cost.String(), ShouldEqual, "5")
		So(item.Params["voice"], ShouldEqual, "v1")
		So(f.files.saved, ShouldResemble, []library.ItemType{library.ItemTypeSpeech})
		So(f.workspaces.credit("ws-1").IsZero(), ShouldBeTrue)
	})

	Convey("未知声音", t, func() {
		f := newLibraryFixture()
		_, err := f.svc.GenerateSpeech(context.Background(), actor, SpeechInput{VoiceID: "nope", Params: ai.Params{"prompt": "x"}})
		So(errors.Is(err, ai.ErrNotFound), ShouldBeTrue)

		_, err = f.svc.GenerateSpeech(context.Background(), actor, SpeechInput{Params: ai.Params{"prompt": "x"}})
		So(errors.Is(err, ai.ErrInvalidParameters), ShouldBeTrue)
	})
}

func TestLibraryService_Transcribe(t *testing.T) {
	Convey("转写结果保存为文本生成物", t, func() {
		f := newLibraryFixture()
		actor := Actor{WorkspaceID: "ws-1", UserID: "user-1"}
		item, err := f.svc.Transcribe(context.Background(), actor, TranscriptionInput{
			Model:    "whisper-1",
			Audio:    strings.NewReader("RIFF"),
			Filename: "meeting.wav",
		})
		So(err, ShouldBeNil)
		So(item.Output.Text, ShouldEqual, "hello world")
		So(item.Output.Segments, ShouldHaveLength, 1)
		So(item.Title, ShouldEqual, "meeting.wav")
		So(item.File, ShouldBeNil)
		So(f.workspaces.credit("ws-1").String(), ShouldEqual, "4.875")

		other := Actor{WorkspaceID: "ws-1", UserID: "user-2"}
		_, err = f.svc.Get(context.Background(), other, item.ID)
		So(errors.Is(err, ai.ErrNotFound), ShouldBeTrue)

		got, err := f.svc.Get(context.Background(), actor, item.ID)
		So(err, ShouldBeNil)
		So(got.ID, ShouldEqual, item.ID)
	})
}

func TestLibraryService_Complete(t *testing.T) {
	actor := Actor{WorkspaceID: "ws-1", UserID: "user-1"}

	Convey("补全输出 token 后输出 done", t, func() {
		f := newLibraryFixture()
		var events []Event
		err := f.svc.Complete(context.Background(), actor, "text-model", ai.Params{"prompt": "Write a story"}, func(e Event) error {
			events = append(events, e)
			return nil
		})
		So(err, ShouldBeNil)
		So(eventTypes(events), ShouldResemble, []EventType{EventToken, EventToken, EventDone})

		item := events[2].Data.(*library.Item)
		So(item.Output.Text, ShouldEqual, "Once upon")
		So(item.Cost.String(), ShouldEqual, "0.01")
		So(f.dispatcher.events[0].(*workspace.CreditUsageEvent).Source, ShouldEqual, SourceCompletion)
	})

	Convey("流出错时输出 error 且不扣费", t, func() {
		f := newLibraryFixture()
		f.chat.err = ai.NewApiError("fake", 500, "boom")
		var events []Event
		err := f.svc.Complete(context.Background(), actor, "text-model", ai.Params{"prompt": "Write"}, func(e Event) error {
			events = append(events, e)
			return nil
		})
		So(ai.IsProviderError(err), ShouldBeTrue)
		So(events[len(events)-1].Type, ShouldEqual, EventError)
		So(f.items.items, ShouldBeEmpty)
		So(f.workspaces.deducts, ShouldBeEmpty)
	})

	Convey("代码补全模型未注册", t, func() {
		f := newLibraryFixture()
		err := f.svc.CompleteCode(context.Background(), actor, "text-model", "fizzbuzz", "go", func(Event) error { return nil })
		So(errors.Is(err, ai.ErrModelNotSupported), ShouldBeTrue)
	})
}
