package scenario

import (
	"iter"
	"time"

	"github.com/roach88/mirage/internal/engine"
	"github.com/roach88/mirage/internal/event"
	"github.com/roach88/mirage/internal/schema"
	"github.com/roach88/mirage/internal/store"
)

func init() {
	register(Scenario{
		Name:        "ecommerce",
		Description: "Users register, log in, browse products, and purchase",
		Register:    registerEcommerce,
		Flows:       ecommerceFlows,
	})
}

func registerEcommerce(reg *schema.Registry) error {
	events := []schema.EventDef{
		{
			Name: "UserRegistered",
			Fields: []schema.Field{
				{Name: "user_id", Hint: "uuid", PrimaryKey: true},
				{Name: "full_name", Hint: "name"},
				{Name: "email", Hint: "email"},
				{Name: "registered_at", Hint: event.HintNow},
			},
		},
		{
			Name: "UserLoggedIn",
			Fields: []schema.Field{
				{Name: "user_id"},
				{Name: "login_time", Hint: event.HintNow},
				{Name: "session_id", Hint: "uuid"},
			},
		},
		{
			Name: "ProductCreated",
			Fields: []schema.Field{
				{Name: "product_id", Hint: "ean13", PrimaryKey: true},
				{Name: "name", Hint: "phrase"},
				{Name: "status", Hint: "choice", Params: map[string]any{
					"elements": []any{"available", "discontinued"},
				}},
				{Name: "price", Hint: "float", Params: map[string]any{
					"positive": true, "min": 1.0, "max": 500.0,
				}},
				{Name: "category", Hint: "choice", Params: map[string]any{
					"elements": []any{"Electronics", "Clothing", "Books", "Home"},
				}},
			},
		},
		{
			Name: "ProductViewed",
			Fields: []schema.Field{
				{Name: "user_id"},
				{Name: "product_id"},
				{Name: "viewed_at", Hint: event.HintNow},
				{Name: "view_duration", Hint: "int", Params: map[string]any{
					"min": 5, "max": 300,
				}},
			},
		},
		{
			Name: "AddToCart",
			Fields: []schema.Field{
				{Name: "user_id"},
				{Name: "product_id"},
				{Name: "quantity", Hint: "int", Params: map[string]any{
					"min": 1, "max": 3,
				}},
				{Name: "added_at", Hint: event.HintNow},
			},
		},
		{
			Name: "Purchase",
			Fields: []schema.Field{
				{Name: "user_id"},
				{Name: "product_id"},
				{Name: "quantity"},
				{Name: "unit_price"},
				{Name: "total_amount"},
				{Name: "purchased_at", Hint: event.HintNow},
				{Name: "payment_method", Hint: "choice", Params: map[string]any{
					"elements": []any{"credit_card", "paypal", "apple_pay"},
				}},
			},
		},
		{
			Name: "ProductReview",
			Fields: []schema.Field{
				{Name: "user_id"},
				{Name: "product_id"},
				{Name: "rating", Hint: "int", Params: map[string]any{
					"min": 1, "max": 5,
				}},
				{Name: "review_text", Hint: "text", Params: map[string]any{
					"max_chars": 200,
				}},
				{Name: "reviewed_at", Hint: event.HintNow},
			},
		},
	}
	for _, def := range events {
		if err := reg.RegisterEvent(def); err != nil {
			return err
		}
	}

	entities := []schema.EntityDef{
		{
			Name:        "User",
			SourceEvent: "UserRegistered",
			PrimaryKey:  "user_id",
			Fields: []schema.StateField{
				{Name: "is_logged_in", Default: false},
				{Name: "last_login", Default: nil},
				{Name: "total_purchases", Default: int64(0)},
				{Name: "cart_items", Default: int64(0)},
				{Name: "total_spent", Default: 0.0},
			},
		},
		{
			Name:        "Product",
			SourceEvent: "ProductCreated",
			PrimaryKey:  "product_id",
			Fields: []schema.StateField{
				{Name: "current_status", FromField: "status"},
				{Name: "current_price", FromField: "price"},
				{Name: "inventory", Default: int64(50)},
				{Name: "view_count", Default: int64(0)},
				{Name: "total_sales", Default: int64(0)},
			},
		},
	}
	for _, def := range entities {
		if err := reg.RegisterEntity(def); err != nil {
			return err
		}
	}
	return nil
}

func ecommerceFlows() []engine.Flow {
	return []engine.Flow{
		{
			Name:   "new_user_registration",
			Weight: 3.0,
			Body: func(s *engine.Session) iter.Seq[engine.Action] {
				return func(yield func(engine.Action) bool) {
					if !yield(engine.NewEvent{Schema: "UserRegistered", CreateEntity: "User"}) {
						return
					}
					if !yield(engine.AddDecay{Wait: 10 * time.Second, Rate: 0.2}) {
						return
					}
					yield(engine.NewEvent{
						Schema: "UserLoggedIn",
						Mutate: &engine.SetState{Entity: "User", Updates: []store.Update{
							store.Set("is_logged_in", true),
							store.Set("last_login", s.Clock()),
						}},
					})
				}
			},
		},
		{
			Name:   "user_browsing_session",
			Weight: 8.0,
			Filter: &engine.Select{Entity: "User", Where: []store.Condition{
				store.Where("is_logged_in", store.OpIs, true),
			}},
			Body: func(s *engine.Session) iter.Seq[engine.Action] {
				return func(yield func(engine.Action) bool) {
					if !yield(engine.NewEvent{
						Schema:    "ProductViewed",
						Overrides: map[string]any{"product_id": "PRODUCT_001"},
					}) {
						return
					}
					if !yield(engine.AddDecay{Wait: 15 * time.Second, Rate: 0.3}) {
						return
					}
					if !yield(engine.NewEvent{
						Schema:    "AddToCart",
						Overrides: map[string]any{"product_id": "PRODUCT_001"},
						Mutate: &engine.SetState{Entity: "User", Updates: []store.Update{
							store.Add("cart_items", int64(1)),
						}},
					}) {
						return
					}
					if !yield(engine.AddDecay{Wait: 30 * time.Second, Rate: 0.5}) {
						return
					}
					if !yield(engine.NewEvent{
						Schema: "Purchase",
						Overrides: map[string]any{
							"product_id":   "PRODUCT_001",
							"quantity":     int64(1),
							"unit_price":   99.99,
							"total_amount": 99.99,
						},
						Mutate: &engine.SetState{Entity: "User", Updates: []store.Update{
							store.Add("total_purchases", int64(1)),
							store.Subtract("cart_items", int64(1)),
							store.Add("total_spent", 99.99),
						}},
					}) {
						return
					}
					if !yield(engine.AddDecay{Wait: time.Minute, Rate: 0.7}) {
						return
					}
					yield(engine.NewEvent{
						Schema:    "ProductReview",
						Overrides: map[string]any{"product_id": "PRODUCT_001"},
					})
				}
			},
		},
		{
			Name:   "returning_user_login",
			Weight: 5.0,
			Filter: &engine.Select{Entity: "User", Where: []store.Condition{
				store.Where("is_logged_in", store.OpIs, false),
			}},
			Body: func(s *engine.Session) iter.Seq[engine.Action] {
				return func(yield func(engine.Action) bool) {
					yield(engine.NewEvent{
						Schema: "UserLoggedIn",
						Mutate: &engine.SetState{Entity: "User", Updates: []store.Update{
							store.Set("is_logged_in", true),
							store.Set("last_login", s.Clock()),
						}},
					})
				}
			},
		},
		{
			Name:   "new_product_listing",
			Weight: 1.5,
			Body: func(s *engine.Session) iter.Seq[engine.Action] {
				return func(yield func(engine.Action) bool) {
					yield(engine.NewEvent{Schema: "ProductCreated", CreateEntity: "Product"})
				}
			},
		},
	}
}
