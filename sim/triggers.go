package sim

import "auric/broker"

func hitStopLoss(p *broker.Position, price float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Side == broker.Long {
		return price <= *p.StopLoss
	}
	return price >= *p.StopLoss
}

func hitTakeProfit(p *broker.Position, price float64) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Side == broker.Long {
		return price >= *p.TakeProfit
	}
	return price <= *p.TakeProfit
}
