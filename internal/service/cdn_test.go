package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"aisuite/internal/ai"
	"aisuite/internal/model/conversation"
	"aisuite/internal/model/library"
	"aisuite/internal/pkg/storage/local"
)

func encodePNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// losslessWebP 1x1 的无损 WebP
const losslessWebP = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func newTestCDN(t *testing.T) *CDN {
	store, err := local.NewLocalStorage(t.TempDir(), "http://localhost/files")
	if err != nil {
		t.Fatal(err)
	}
	cdn := NewCDN(store)
	cdn.now = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }
	return cdn
}

func TestCDN_MessageImage(t *testing.T) {
	Convey("上传消息附图", t, func() {
		cdn := newTestCDN(t)
		ctx := context.Background()
		data := encodePNG(200, 100)

		img, err := cdn.UploadMessageImage(ctx, data)
		So(err, ShouldBeNil)
		So(img.Ext, ShouldEqual, "png")
		So(img.Width, ShouldEqual, 200)
		So(img.Height, ShouldEqual, 100)
		So(img.Size, ShouldEqual, int64(len(data)))
		So(img.BlurHash, ShouldNotBeEmpty)
		So(img.StorageType, ShouldEqual, "local")
		So(strings.HasPrefix(img.StorageKey, "messages/2026/10/"), ShouldBeTrue)
		So(img.URL, ShouldEqual, "http://localhost/files/"+img.StorageKey)

		Convey("按 key 读取", func() {
			got, err := cdn.ReadImage(ctx, img)
			So(err, ShouldBeNil)
			So(bytes.Equal(got, data), ShouldBeTrue)
		})

		Convey("其他存储写入的记录按 URL 反查", func() {
			moved := &conversation.ImageFile{StorageType: "oss", StorageKey: "elsewhere/a.png", URL: img.URL}
			got, err := cdn.ReadImage(ctx, moved)
			So(err, ShouldBeNil)
			So(bytes.Equal(got, data), ShouldBeTrue)
		})

		Convey("URL 不属于当前存储", func() {
			_, err := cdn.ReadImage(ctx, &conversation.ImageFile{URL: "https://other.example.com/a.png"})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("WebP 附图", t, func() {
		cdn := newTestCDN(t)
		data, err := base64.StdEncoding.DecodeString(losslessWebP)
		So(err, ShouldBeNil)

		img, err := cdn.UploadMessageImage(context.Background(), data)
		So(err, ShouldBeNil)
		So(img.Ext, ShouldEqual, "webp")
		So(img.Width, ShouldEqual, 1)
		So(img.Height, ShouldEqual, 1)
		So(strings.HasSuffix(img.StorageKey, ".webp"), ShouldBeTrue)
	})

	Convey("大图缩放后计算 blurhash", t, func() {
		src := image.NewRGBA(image.Rect(0, 0, 640, 320))
		thumb := thumbnail(src, blurHashWidth)
		So(thumb.Bounds().Dx(), ShouldEqual, blurHashWidth)
		So(thumb.Bounds().Dy(), ShouldEqual, 32)
		So(thumbnail(image.NewRGBA(image.Rect(0, 0, 10, 10)), blurHashWidth).Bounds().Dx(), ShouldEqual, 10)

		info, err := inspectImage(encodePNG(640, 320))
		So(err, ShouldBeNil)
		So(info.blurHash, ShouldNotBeEmpty)
	})

	Convey("无法识别的图片", t, func() {
		cdn := newTestCDN(t)
		_, err := cdn.UploadMessageImage(context.Background(), []byte("not an image"))
		So(errors.Is(err, ai.ErrInvalidParameters), ShouldBeTrue)
	})
}

func TestCDN_LibraryFile(t *testing.T) {
	Convey("保存生成的图片与音频", t, func() {
		cdn := newTestCDN(t)
		ctx := context.Background()

		file, err := cdn.SaveLibraryFile(ctx, library.ItemTypeImage, encodePNG(32, 32), "image/png")
		So(err, ShouldBeNil)
		So(file.Width, ShouldEqual, 32)
		So(file.BlurHash, ShouldNotBeEmpty)
		So(strings.HasSuffix(file.StorageKey, ".png"), ShouldBeTrue)
		So(strings.HasPrefix(file.StorageKey, "image/"), ShouldBeTrue)

		audio, err := cdn.SaveLibraryFile(ctx, library.ItemTypeSpeech, []byte("ID3"), "audio/mpeg")
		So(err, ShouldBeNil)
		So(strings.HasSuffix(audio.StorageKey, ".mp3"), ShouldBeTrue)
		So(audio.Width, ShouldEqual, 0)
		So(audio.ContentType, ShouldEqual, "audio/mpeg")
	})

	Convey("缩略图保持宽高比", t, func() {
		img := image.NewRGBA(image.Rect(0, 0, 640, 320))
		thumb := thumbnail(img, blurHashWidth)
		So(thumb.Bounds().Dx(), ShouldEqual, 64)
		So(thumb.Bounds().Dy(), ShouldEqual, 32)

		small := image.NewRGBA(image.Rect(0, 0, 10, 10))
		So(thumbnail(small, blurHashWidth) == image.Image(small), ShouldBeTrue)
	})
}
