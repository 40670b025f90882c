package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kizuna/internal/model"
)

// StatusIMUsed はユーザー名の重複と既フォローに使うステータスコード。
const StatusIMUsed = http.StatusIMUsed

// ResponseBody はREST APIレスポンスの統一フォーマット。
// エラー時はcodeに機械判読可能な理由が入る。
type ResponseBody struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// WriteJSON は統一フォーマットでレスポンスを書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, message string, data any) {
	writeBody(w, ResponseBody{StatusCode: statusCode, Message: message, Data: data})
}

// WriteErrorResponse は統一フォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeBody(w, ResponseBody{StatusCode: statusCode, Message: apiErr.Message, Code: apiErr.Code})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Internal server error",
		Category: model.CategoryInternal,
	})
}

// StatusForCategory はエラーカテゴリをHTTPステータスコードに変換する。
func StatusForCategory(category string) int {
	switch category {
	case model.CategoryNotFound:
		return http.StatusNotFound
	case model.CategoryUnauthorized:
		return http.StatusUnauthorized
	case model.CategoryConflict:
		return StatusIMUsed
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategoryUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeBody(w http.ResponseWriter, body ResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.StatusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}
