package classify

import (
	"net/http"
	"strings"
)

// Class - категория неуспешного ответа сервера.
type Class int

const (
	// RealError - настоящая ошибка: оптимистичное изменение откатывается.
	RealError Class = iota
	// BenignConflict - сервер уже находится в нужном состоянии.
	BenignConflict
	// ServerAnomaly - сервер вернул ошибку, но изменение на самом деле применилось.
	ServerAnomaly
	// AuthExpired - истекла сессия.
	AuthExpired
)

func (c Class) String() string {
	switch c {
	case BenignConflict:
		return "BenignConflict"
	case ServerAnomaly:
		return "ServerAnomaly"
	case AuthExpired:
		return "AuthExpired"
	default:
		return "RealError"
	}
}

// Keeps сообщает, сохраняется ли оптимистичное состояние.
func (c Class) Keeps() bool {
	return c == BenignConflict || c == ServerAnomaly
}

// Topic - тема конфликта, нужна только интерфейсу для точечной обработки.
type Topic string

const (
	TopicNone   Topic = ""
	TopicLike   Topic = "like"
	TopicSave   Topic = "save"
	TopicFollow Topic = "follow"
)

// Verdict - результат классификации.
type Verdict struct {
	Class Class
	Topic Topic
}

var (
	// "уже сделано" на английском и турецком, "mevcut" - "уже существует"
	alreadyKeywords = []string{"already", "zaten", "mevcut"}

	// обратное предусловие: действие уже в нужном конечном состоянии
	inverseKeywords = []string{
		"not liked", "beğenilmemiş", "begenilmemis",
		"not saved", "kaydedilmemiş", "kaydedilmemis",
	}

	// известная сигнатура ошибки, после которой лайк все равно сохранен
	anomalySignatures = []string{
		"failed while saving the like",
		"beğeni kaydedilirken hata",
	}

	topicKeywords = []struct {
		topic    Topic
		keywords []string
	}{
		{TopicLike, []string{"like", "beğen", "begen"}},
		{TopicSave, []string{"save", "kaydet", "kaydedil", "bookmark"}},
		{TopicFollow, []string{"follow", "takip"}},
	}
)

// Classify относит неуспешный ответ к одной из категорий.
// Статус 0 означает, что ответа не было (сетевая ошибка).
func Classify(status int, message string) Verdict {
	msg := strings.ToLower(message)

	switch {
	case status == http.StatusUnauthorized:
		return Verdict{Class: AuthExpired}
	case conflictStatus(status) && containsAny(msg, alreadyKeywords):
		return Verdict{Class: BenignConflict, Topic: topicOf(msg)}
	case badRequestStatus(status) && containsAny(msg, inverseKeywords):
		return Verdict{Class: BenignConflict, Topic: topicOf(msg)}
	case status >= http.StatusInternalServerError && containsAny(msg, anomalySignatures):
		return Verdict{Class: ServerAnomaly, Topic: TopicLike}
	}
	return Verdict{Class: RealError}
}

// badRequestStatus - 400 и неуспешный конверт, пришедший с 2xx статусом.
func badRequestStatus(status int) bool {
	return status == http.StatusBadRequest || (status >= 200 && status < 300)
}

func conflictStatus(status int) bool {
	return badRequestStatus(status) || status == http.StatusConflict || status == http.StatusUnprocessableEntity
}

func topicOf(msg string) Topic {
	for _, t := range topicKeywords {
		if containsAny(msg, t.keywords) {
			return t.topic
		}
	}
	return TopicNone
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
