package ws

import (
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/transport/http/dto"
	"chart_backend/internal/feature/candles/usecase"
)

// 受信メッセージの種類
const (
	InSetRange      = "setRange"
	InSetLive       = "setLive"
	InHover         = "hover"
	InSetFullscreen = "setFullscreen"
)

// Inbound はレンダラーから受信するメッセージです。
type Inbound struct {
	Type       string `json:"type"`
	Range      string `json:"range,omitempty"`
	Live       bool   `json:"live,omitempty"`
	Time       *int64 `json:"time,omitempty"`
	Fullscreen bool   `json:"fullscreen,omitempty"`
}

// Message はレンダラーへ送信するメッセージです。TypeはEventKindと同じ値です。
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type setDataPayload struct {
	Range   string               `json:"range"`
	Candles []dto.CandleResponse `json:"candles"`
}

type candlePayload struct {
	Candle *dto.CandleResponse `json:"candle"`
}

type rangePayload struct {
	Range string `json:"range"`
}

type togglePayload struct {
	Enabled bool `json:"enabled"`
}

type statsPayload struct {
	Range         string              `json:"range"`
	First         *dto.CandleResponse `json:"first"`
	Last          *dto.CandleResponse `json:"last"`
	Change        string              `json:"change"`
	ChangePercent string              `json:"changePercent"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func toCandle(c *entity.Candle) *dto.CandleResponse {
	if c == nil {
		return nil
	}
	return &dto.CandleResponse{Time: c.Time, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
}

// toMessage はセッションのイベントを送信メッセージに変換します。
func toMessage(ev usecase.Event) Message {
	m := Message{Type: string(ev.Kind)}
	switch ev.Kind {
	case usecase.EventSetData:
		cs := make([]dto.CandleResponse, 0, len(ev.Candles))
		for i := range ev.Candles {
			cs = append(cs, *toCandle(&ev.Candles[i]))
		}
		m.Data = setDataPayload{Range: ev.Window.String(), Candles: cs}
	case usecase.EventAppend, usecase.EventHover:
		m.Data = candlePayload{Candle: toCandle(ev.Candle)}
	case usecase.EventRangeChanged:
		m.Data = rangePayload{Range: ev.Window.String()}
	case usecase.EventSetAutoScroll:
		m.Data = togglePayload{Enabled: ev.Live}
	case usecase.EventSetFullscreen:
		m.Data = togglePayload{Enabled: ev.Fullscreen}
	case usecase.EventRangeStats:
		p := statsPayload{Range: ev.Window.String()}
		if ev.Stats != nil {
			p.First = toCandle(ev.Stats.First)
			p.Last = toCandle(ev.Stats.Last)
			p.Change = ev.Stats.Change.String()
			p.ChangePercent = ev.Stats.ChangePct.String()
		}
		m.Data = p
	case usecase.EventError:
		p := errorPayload{Message: "unknown error"}
		if ev.Err != nil {
			p.Message = ev.Err.Error()
		}
		m.Data = p
	}
	return m
}
