package notify

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	ChannelModel       = "model"
	ChannelFundamental = "fundamental"
	ChannelPrice       = "price"
)

// Pauser is the channel surface needed to batch notifications.
type Pauser interface {
	Name() string
	Pause() int32
	Resume() int32
	Depth() int32
	Pending() int
}

// Bus groups the change channels of the graph manager.
type Bus struct {
	Model       *Channel[ModelChange]
	Fundamental *Channel[FundamentalChange]
	Price       *Channel[PriceChange]
}

func NewBus(logger *logrus.Logger, recorder Recorder) *Bus {
	return &Bus{
		Model:       NewChannel[ModelChange](ChannelModel, logger, recorder),
		Fundamental: NewChannel[FundamentalChange](ChannelFundamental, logger, recorder),
		Price:       NewChannel[PriceChange](ChannelPrice, logger, recorder),
	}
}

func (b *Bus) Channels() []Pauser {
	return []Pauser{b.Model, b.Fundamental, b.Price}
}

func (b *Bus) Channel(name string) (Pauser, error) {
	for _, ch := range b.Channels() {
		if ch.Name() == name {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("unknown notification channel: %q", name)
}
