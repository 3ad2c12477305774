package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/buckket/go-blurhash"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"aisuite/internal/ai"
	"aisuite/internal/model/conversation"
	"aisuite/internal/model/library"
	"aisuite/internal/pkg/id"
	"aisuite/internal/pkg/storage"
)

const (
	blurHashWidth = 64
	blurHashX     = 4
	blurHashY     = 3
)

// ErrUnsupportedImage 无法识别的图片格式
var ErrUnsupportedImage = errors.New("unsupported image format")

// CDN 文件写入与访问，包装底层对象存储
type CDN struct {
	store storage.Storage
	now   func() time.Time
}

// NewCDN 创建 CDN 服务
func NewCDN(store storage.Storage) *CDN {
	return &CDN{store: store, now: time.Now}
}

// LookupKey 写入时使用的存储类型，读取时据此判断文件是否属于当前存储
func (c *CDN) LookupKey() string {
	return c.store.GetStorageType()
}

// Write 写入文件并返回访问 URL
func (c *CDN) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return c.store.Upload(ctx, key, bytes.NewReader(data), contentType)
}

// URL 文件访问 URL
func (c *CDN) URL(ctx context.Context, key string) (string, error) {
	return c.store.URL(ctx, key)
}

// ReadImage 读取消息附图，优先使用存储 key，其次由 URL 反查
func (c *CDN) ReadImage(ctx context.Context, img *conversation.ImageFile) ([]byte, error) {
	if img == nil {
		return nil, storage.ErrNotFound
	}

	key := img.StorageKey
	if key == "" || (img.StorageType != "" && img.StorageType != c.LookupKey()) {
		k, ok := c.store.KeyFromURL(img.URL)
		if !ok {
			return nil, fmt.Errorf("%w: image is not stored in %s", storage.ErrNotFound, c.LookupKey())
		}
		key = k
	}

	rc, err := c.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// newKey 按日期分目录的随机文件名
func (c *CDN) newKey(prefix, ext string) string {
	return path.Join(prefix, c.now().Format("2006/01"), id.New()+"."+ext)
}

// decodedImage 解码后的图片信息
type decodedImage struct {
	ext      string
	width    int
	height   int
	blurHash string
}

// inspectImage 解码图片，得到尺寸与 blurhash
func inspectImage(data []byte) (*decodedImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ai.NewDomainError(ErrUnsupportedImage.Error(), ai.ErrInvalidParameters)
	}

	bounds := img.Bounds()
	info := &decodedImage{
		ext:    imageExt(format),
		width:  bounds.Dx(),
		height: bounds.Dy(),
	}

	hash, err := blurhash.Encode(blurHashX, blurHashY, thumbnail(img, blurHashWidth))
	if err == nil {
		info.blurHash = hash
	}
	return info, nil
}

func imageExt(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	default:
		return format
	}
}

// thumbnail 双线性缩放到指定宽度，blurhash 只需要很小的图
func thumbnail(src image.Image, width int) image.Image {
	b := src.Bounds()
	if b.Dx() <= width || b.Dx() == 0 {
		return src
	}

	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// UploadMessageImage 保存用户上传的消息附图
func (c *CDN) UploadMessageImage(ctx context.Context, data []byte) (*conversation.ImageFile, error) {
	info, err := inspectImage(data)
	if err != nil {
		return nil, err
	}

	key := c.newKey("messages", info.ext)
	url, err := c.Write(ctx, key, data, http.DetectContentType(data))
	if err != nil {
		return nil, err
	}

	return &conversation.ImageFile{
		StorageKey:  key,
		StorageType: c.LookupKey(),
		URL:         url,
		Ext:         info.ext,
		Size:        int64(len(data)),
		Width:       info.width,
		Height:      info.height,
		BlurHash:    info.blurHash,
	}, nil
}

// SaveLibraryFile 保存生成的图片或音频，图片会附带尺寸与 blurhash
func (c *CDN) SaveLibraryFile(ctx context.Context, itemType library.ItemType, data []byte, contentType string) (*library.File, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	file := &library.File{
		StorageType: c.LookupKey(),
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	ext := extFromContentType(contentType)
	if strings.HasPrefix(contentType, "image/") {
		if info, err := inspectImage(data); err == nil {
			file.Width = info.width
			file.Height = info.height
			file.BlurHash = info.blurHash
			ext = info.ext
		}
	}

	file.StorageKey = c.newKey(string(itemType), ext)
	url, err := c.Write(ctx, file.StorageKey, data, contentType)
	if err != nil {
		return nil, err
	}
	file.URL = url
	return file, nil
}

func extFromContentType(contentType string) string {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch mediaType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	case "audio/ogg":
		return "ogg"
	default:
		return "bin"
	}
}
