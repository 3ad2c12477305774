package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"aisuite/internal/pkg/storage"
)

func TestLocalStorage(t *testing.T) {
	Convey("本地存储读写", t, func() {
		dir := t.TempDir()
		s, err := NewLocalStorage(dir, "http://localhost:8080/files/")
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("上传后可以下载并由 URL 反查 key", func() {
			url, err := s.Upload(ctx, "image/2026/10/a.png", strings.NewReader("png"), "image/png")
			So(err, ShouldBeNil)
			So(url, ShouldEqual, "http://localhost:8080/files/image/2026/10/a.png")

			rc, err := s.Download(ctx, "image/2026/10/a.png")
			So(err, ShouldBeNil)
			data, _ := io.ReadAll(rc)
			rc.Close()
			So(string(data), ShouldEqual, "png")

			key, ok := s.KeyFromURL(url + "?v=1")
			So(ok, ShouldBeTrue)
			So(key, ShouldEqual, "image/2026/10/a.png")

			_, ok = s.KeyFromURL("https://elsewhere.example.com/image/a.png")
			So(ok, ShouldBeFalse)

			exists, err := s.Exists(ctx, key)
			So(err, ShouldBeNil)
			So(exists, ShouldBeTrue)
		})

		Convey("上传不留下临时文件", func() {
			_, err := s.Upload(ctx, "speech/a.mp3", strings.NewReader("mp3"), "audio/mpeg")
			So(err, ShouldBeNil)
			entries, err := os.ReadDir(filepath.Join(dir, "speech"))
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Name(), ShouldEqual, "a.mp3")
		})

		Convey("越界路径被限制在根目录内", func() {
			_, err := s.Upload(ctx, "../../escape.txt", strings.NewReader("x"), "text/plain")
			So(err, ShouldBeNil)
			_, err = os.Stat(filepath.Join(dir, "escape.txt"))
			So(err, ShouldBeNil)

			_, err = s.Upload(ctx, "", strings.NewReader("x"), "text/plain")
			So(errors.Is(err, storage.ErrInvalidKey), ShouldBeTrue)
		})

		Convey("不存在的文件", func() {
			_, err := s.Download(ctx, "missing.png")
			So(errors.Is(err, storage.ErrNotFound), ShouldBeTrue)
			So(s.Delete(ctx, "missing.png"), ShouldBeNil)

			exists, err := s.Exists(ctx, "missing.png")
			So(err, ShouldBeNil)
			So(exists, ShouldBeFalse)
		})
	})
}
