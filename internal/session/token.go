// Package session はセッショントークンの生成・導出とセッションストアを提供する。
//
// クライアントにはランダムなトークンをCookieで渡し、サーバー側には
// そのSHA-256ハッシュのみをセッションIDとして保存する。DBが漏洩しても
// 有効なトークンは復元できない。
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

// tokenByteLength はセッショントークンの乱数長（バイト）。
// 160ビットあれば実用上衝突しない。一意性チェックは行わない。
const tokenByteLength = 20

// tokenEncoding はパディングなしのbase32エンコーディング。
var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateToken は暗号的に安全なセッショントークンを生成する。
// 20バイトの乱数を小文字base32でエンコードした32文字の文字列を返す。
func GenerateToken() (string, error) {
	b := make([]byte, tokenByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return strings.ToLower(tokenEncoding.EncodeToString(b)), nil
}

// DeriveSessionID はトークンからセッションIDを導出する。
// トークンのUTF-8バイト列のSHA-256ハッシュを小文字16進で返す。
// 決定的であり、保存時と検索時の両方で同じ導出規則を使う。
// この導出規則を実装するのは本パッケージのみとする。
func DeriveSessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
