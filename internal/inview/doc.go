// Package inview tracks which elements of dynamically resolved groups are
// currently visible and reports enter/exit transitions.
//
// # Architecture
//
//	signal ──► throttle (100ms, leading+trailing) ──► Controller.CheckAll
//	                                                     │
//	                                  ┌──────────────────┼──────────────────┐
//	                                  ▼                  ▼                  ▼
//	                             Registry(q1)       Registry(q2)       Registry(q3)
//	                                  │ Check: predicate per element, diff against current
//	                                  ▼
//	                           enter / exit handlers
//
// A Controller owns one Registry per query key, in registration order, and a
// single Options value shared by pointer with every Registry. Element lookup,
// geometry and platform signals are injected through ElementSource,
// GeometryProvider and SignalSource; a Controller built without a source or
// geometry is inert.
//
// # Handler ordering
//
// For each event, one-shot handlers registered with Once run first, in
// registration order, and are removed before they run. Persistent handlers
// registered with On then run in reverse registration order.
//
// # Basic Usage
//
//	c := inview.New(
//	    inview.WithSource(doc),
//	    inview.WithGeometry(doc),
//	    inview.WithSignals(screen),
//	)
//	c.Resolve(".card").
//	    On(inview.EventEnter, inview.Notify(func(el inview.Element) {
//	        fmt.Println("visible:", el.ElementID())
//	    }))
//	if err := c.Start(); err != nil {
//	    return err
//	}
//	defer c.Stop()
package inview
