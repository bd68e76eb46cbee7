package valuation

import (
	"math"

	"github.com/shopspring/decimal"
)

// Method 库存计价方式
type Method string

const (
	MethodWeightedAverage Method = "weighted_average"
	MethodFIFO            Method = "fifo"
	MethodLIFO            Method = "lifo"
)

// ParseMethod 解析计价方式，空值视为加权平均
func ParseMethod(raw string) (Method, error) {
	switch Method(raw) {
	case "", MethodWeightedAverage:
		return MethodWeightedAverage, nil
	case MethodFIFO:
		return MethodFIFO, nil
	case MethodLIFO:
		return MethodLIFO, nil
	default:
		return "", ErrUnknownMethod
	}
}

// MovementType 库存流水类型
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementSale       MovementType = "sale"
	MovementReturn     MovementType = "return"
	MovementAdjustment MovementType = "adjustment"
)

// Movement 参与计价的一条流水。
// Quantity 对 purchase/sale/return 为正数量，对 adjustment 为带符号增减量。
type Movement struct {
	Type     MovementType
	Quantity int64
	UnitCost *decimal.Decimal
}

// Lot 一批入库（FIFO/LIFO 使用）
type Lot struct {
	Quantity int64           `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// State 某一时刻的库存状态
type State struct {
	Quantity   int64           `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	TotalValue decimal.Decimal `json:"total_value"`
	Lots       []Lot           `json:"lots,omitempty"`
}

// Ledger 对流水逐条折叠得到库存数量与单位成本。非并发安全，调用方需串行化。
type Ledger struct {
	method    Method
	quantity  int64
	totalCost decimal.Decimal
	unitCost  decimal.Decimal
	lots      []Lot
}

// NewLedger 创建空账本
func NewLedger(method Method) (*Ledger, error) {
	switch method {
	case MethodWeightedAverage, MethodFIFO, MethodLIFO:
	default:
		return nil, ErrUnknownMethod
	}
	return &Ledger{method: method, totalCost: decimal.Zero, unitCost: decimal.Zero}, nil
}

// Replay 从空状态依次应用全部历史流水
func Replay(method Method, movements []Movement) (*Ledger, error) {
	ledger, err := NewLedger(method)
	if err != nil {
		return nil, err
	}
	for _, movement := range movements {
		if err := ledger.Apply(movement); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

// Method 返回账本计价方式
func (l *Ledger) Method() Method {
	return l.method
}

// Quantity 当前数量
func (l *Ledger) Quantity() int64 {
	return l.quantity
}

// UnitCost 当前单位成本
func (l *Ledger) UnitCost() decimal.Decimal {
	return l.unitCost
}

// Apply 应用一条流水；失败时账本状态不变
func (l *Ledger) Apply(m Movement) error {
	if m.UnitCost != nil && m.UnitCost.IsNegative() {
		return &MovementError{Field: "unit_cost", Reason: "must not be negative"}
	}
	switch m.Type {
	case MovementPurchase:
		if m.Quantity <= 0 {
			return &MovementError{Field: "quantity", Reason: "must be positive"}
		}
		if m.UnitCost == nil {
			return &MovementError{Field: "unit_cost", Reason: "is required for purchase"}
		}
		return l.receive(m.Quantity, *m.UnitCost)
	case MovementReturn:
		if m.Quantity <= 0 {
			return &MovementError{Field: "quantity", Reason: "must be positive"}
		}
		return l.receive(m.Quantity, l.costOrCurrent(m.UnitCost))
	case MovementSale:
		if m.Quantity <= 0 {
			return &MovementError{Field: "quantity", Reason: "must be positive"}
		}
		return l.issue(m.Quantity)
	case MovementAdjustment:
		switch {
		case m.Quantity > 0:
			return l.receive(m.Quantity, l.costOrCurrent(m.UnitCost))
		case m.Quantity == math.MinInt64:
			return &MovementError{Field: "quantity", Reason: "is out of range"}
		case m.Quantity < 0:
			return l.issue(-m.Quantity)
		default:
			return &MovementError{Field: "quantity", Reason: "must not be zero"}
		}
	default:
		return &MovementError{Field: "type", Reason: "is unknown"}
	}
}

// State 返回当前状态快照（Lots 为副本）
func (l *Ledger) State() State {
	state := State{
		Quantity:   l.quantity,
		UnitCost:   l.unitCost,
		TotalValue: l.totalCost,
	}
	if len(l.lots) > 0 {
		state.Lots = append([]Lot(nil), l.lots...)
	}
	return state
}

func (l *Ledger) costOrCurrent(cost *decimal.Decimal) decimal.Decimal {
	if cost != nil {
		return *cost
	}
	return l.unitCost
}

func (l *Ledger) receive(qty int64, cost decimal.Decimal) error {
	if qty > math.MaxInt64-l.quantity {
		return &MovementError{Field: "quantity", Reason: "exceeds the maximum stock quantity"}
	}
	amount := cost.Mul(decimal.NewFromInt(qty))
	l.quantity += qty
	l.totalCost = l.totalCost.Add(amount)
	if l.method == MethodWeightedAverage {
		l.unitCost = l.totalCost.Div(decimal.NewFromInt(l.quantity))
		return nil
	}
	l.lots = append(l.lots, Lot{Quantity: qty, UnitCost: cost})
	l.unitCost = l.nextLotCost()
	return nil
}

func (l *Ledger) issue(qty int64) error {
	if qty > l.quantity {
		return &InsufficientStockError{Available: l.quantity, Requested: qty}
	}
	if l.method == MethodWeightedAverage {
		l.quantity -= qty
		if l.quantity == 0 {
			l.totalCost = decimal.Zero
			return nil
		}
		l.totalCost = l.totalCost.Sub(l.unitCost.Mul(decimal.NewFromInt(qty)))
		return nil
	}

	remaining := qty
	for remaining > 0 && len(l.lots) > 0 {
		idx := 0
		if l.method == MethodLIFO {
			idx = len(l.lots) - 1
		}
		lot := &l.lots[idx]
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}
		lot.Quantity -= take
		remaining -= take
		l.totalCost = l.totalCost.Sub(lot.UnitCost.Mul(decimal.NewFromInt(take)))
		if lot.Quantity == 0 {
			if l.method == MethodLIFO {
				l.lots = l.lots[:idx]
			} else {
				l.lots = l.lots[1:]
			}
		}
	}
	l.quantity -= qty
	if len(l.lots) == 0 {
		l.lots = nil
		l.totalCost = decimal.Zero
	}
	l.unitCost = l.nextLotCost()
	return nil
}

// nextLotCost 下一件将被消耗的成本；无批次时沿用上次单位成本
func (l *Ledger) nextLotCost() decimal.Decimal {
	if len(l.lots) == 0 {
		return l.unitCost
	}
	if l.method == MethodLIFO {
		return l.lots[len(l.lots)-1].UnitCost
	}
	return l.lots[0].UnitCost
}
