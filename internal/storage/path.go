package storage

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// PathFromReference は安定したパスまたは旧形式の完全URLから、ストレージ上のパスを取り出す。
// URLの場合はパスの末尾2要素（{userID}/{file}）を使う。
func PathFromReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "://") {
		return strings.TrimPrefix(ref, "/")
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	return strings.Join(segments[len(segments)-2:], "/")
}

// OwnsPath はパスが指定ユーザーの名前空間（{userID}/...）にある場合にtrueを返す。
func OwnsPath(userID, p string) bool {
	if userID == "" || p == "" {
		return false
	}
	if strings.Contains(p, "..") {
		return false
	}
	rest, ok := strings.CutPrefix(p, userID+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// extensionFor は元ファイル名の拡張子、無ければMIMEサブタイプから拡張子を決める。
// 英数字以外は取り除き小文字にする。決まらない場合は空文字列を返す。
func extensionFor(originalName, mimeType string) string {
	if ext := sanitizeExt(path.Ext(originalName)); ext != "" {
		return ext
	}

	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = mimeType
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok {
		return ""
	}
	// image/svg+xml のような構造化サフィックスは本体部分だけを使う
	subtype, _, _ = strings.Cut(subtype, "+")
	if subtype == "jpeg" {
		subtype = "jpg"
	}
	return sanitizeExt(subtype)
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var sb strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
