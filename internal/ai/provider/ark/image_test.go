package ark

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
)

func TestImageService(t *testing.T) {
	Convey("方舟文生图", t, func() {
		rates, err := cost.ParseRates(map[string]string{DefaultImageModel: "2.5"})
		So(err, ShouldBeNil)
		calc := cost.NewCalculator(rates)

		var captured model.GenerateImagesRequest
		calls := 0
		jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
		ok := func(_ context.Context, req model.GenerateImagesRequest) (string, error) {
			calls++
			captured = req
			return base64.StdEncoding.EncodeToString(jpeg), nil
		}

		Convey("默认模型与尺寸", func() {
			svc := newImageService(ok, nil, calc)
			So(svc.Models(), ShouldResemble, []ai.Model{DefaultImageModel})

			res, err := svc.GenerateImage(context.Background(), DefaultImageModel, ai.ImageRequest{
				Params: ai.Params{"prompt": "西湖日落"},
			})
			So(err, ShouldBeNil)
			So(res.Image, ShouldResemble, jpeg)
			So(res.ContentType, ShouldEqual, "image/jpeg")
			So(res.Cost.Equal(cost.NewCount(2.5)), ShouldBeTrue)
			So(*captured.Size, ShouldEqual, "1024x1024")
			So(*captured.ResponseFormat, ShouldEqual, "b64_json")
			So(*captured.Watermark, ShouldBeFalse)
			So(captured.Prompt, ShouldEqual, "西湖日落")
		})

		Convey("指定尺寸和水印", func() {
			svc := newImageService(ok, []string{DefaultImageModel}, calc)
			res, err := svc.GenerateImage(context.Background(), DefaultImageModel, ai.ImageRequest{
				Width: 720, Height: 1280, Params: ai.Params{"prompt": "p", "watermark": "true"},
			})
			So(err, ShouldBeNil)
			So(*captured.Size, ShouldEqual, "720x1280")
			So(*captured.Watermark, ShouldBeTrue)
			So(res.Params["size"], ShouldEqual, "720x1280")
		})

		Convey("接口失败转换为厂商错误", func() {
			svc := newImageService(func(context.Context, model.GenerateImagesRequest) (string, error) {
				return "", errors.New("content rejected")
			}, nil, calc)
			_, err := svc.GenerateImage(context.Background(), DefaultImageModel, ai.ImageRequest{Params: ai.Params{"prompt": "p"}})
			So(ai.IsProviderError(err), ShouldBeTrue)
		})

		Convey("参数错误不调用接口", func() {
			svc := newImageService(ok, nil, calc)
			_, err := svc.GenerateImage(context.Background(), DefaultImageModel, ai.ImageRequest{Params: ai.Params{}})
			So(errors.Is(err, ai.ErrInvalidParameters), ShouldBeTrue)

			_, err = svc.GenerateImage(context.Background(), "dall-e-3", ai.ImageRequest{Params: ai.Params{"prompt": "p"}})
			So(errors.Is(err, ai.ErrModelNotSupported), ShouldBeTrue)
			So(calls, ShouldEqual, 0)
		})
	})
}
