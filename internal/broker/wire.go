package broker

// wire.go defines the JSON shapes of the OANDA v3 responses the client
// consumes. Prices, balances and unit counts are decimal strings.

type accountSummaryResponse struct {
	Account struct {
		Balance string `json:"balance"`
	} `json:"account"`
}

type instrumentsResponse struct {
	Instruments []instrumentJSON `json:"instruments"`
}

type instrumentJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type candlesResponse struct {
	Instrument string       `json:"instrument"`
	Candles    []candleJSON `json:"candles"`
}

type candleJSON struct {
	Time     string     `json:"time"`
	Complete bool       `json:"complete"`
	Bid      *priceJSON `json:"bid"`
	Mid      *priceJSON `json:"mid"`
	Ask      *priceJSON `json:"ask"`
}

type priceJSON struct {
	Close string `json:"c"`
}

type orderRequest struct {
	Order orderBody `json:"order"`
}

type orderBody struct {
	Units        string `json:"units"`
	Instrument   string `json:"instrument"`
	TimeInForce  string `json:"timeInForce"`
	Type         string `json:"type"`
	PositionFill string `json:"positionFill"`
}

type orderCreateResponse struct {
	OrderFillTransaction *fillTransactionJSON `json:"orderFillTransaction"`
}

type fillTransactionJSON struct {
	Price string `json:"price"`
	Units string `json:"units"`
}

type openTradesResponse struct {
	Trades []tradeJSON `json:"trades"`
}

type tradeJSON struct {
	ID           string `json:"id"`
	Instrument   string `json:"instrument"`
	CurrentUnits string `json:"currentUnits"`
	Price        string `json:"price"`
}
