package controller

import (
	"context"
	"errors"
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/PriceScan/internal/hw/camera"
	"github.com/cjeanneret/PriceScan/internal/logic/capture"
	"github.com/cjeanneret/PriceScan/internal/logic/session"
	"github.com/cjeanneret/PriceScan/internal/notify"
)

type fixture struct {
	dev  *camera.SyntheticDevice
	mgr  *session.Manager
	rec  *notify.Recorder
	ctrl *Controller
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dev := camera.NewSyntheticDevice(0, false)
	rec := &notify.Recorder{}
	pipe := capture.NewPipeline(&capture.JPEGEncoder{}, capture.PlaceholderRecognizer{Label: "Молоко 3.2%", Price: "89.90 ₽"}, nil)
	mgr := session.NewManager(dev, camera.Constraints{FacingMode: camera.FacingEnvironment, Width: 32, Height: 24}, pipe, session.WithNotifier(rec))
	ctrl := New(mgr, rec, opts)
	t.Cleanup(ctrl.Shutdown)
	ctrl.Settle()
	return &fixture{dev: dev, mgr: mgr, rec: rec, ctrl: ctrl}
}

func mustCapture(t *testing.T, c *Controller) capture.CapturedItem {
	t.Helper()
	item, err := c.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if item == nil {
		t.Fatal("Capture returned no item while live")
	}
	return *item
}

// ---------- tabs and session lifecycle ----------

func TestNew_OpensCameraOnInitialTab(t *testing.T) {
	f := newFixture(t, Options{OfflineMode: true})
	if got := f.ctrl.Snapshot(); got.ActiveTab != TabCamera || !got.OfflineMode {
		t.Errorf("state = %+v", got)
	}
	if f.ctrl.SessionState() != session.StateLive {
		t.Errorf("session = %v, want live", f.ctrl.SessionState())
	}
}

func TestNew_OtherInitialTabDoesNotOpen(t *testing.T) {
	f := newFixture(t, Options{InitialTab: TabSettings})
	if f.ctrl.SessionState() != session.StateIdle {
		t.Errorf("session = %v, want idle", f.ctrl.SessionState())
	}
	if f.dev.Opened() != 0 {
		t.Errorf("device opened %d times, want 0", f.dev.Opened())
	}
}

func TestSelectTab_ClosesAndReopens(t *testing.T) {
	f := newFixture(t, Options{})

	if err := f.ctrl.SelectTab(TabGallery); err != nil {
		t.Fatalf("SelectTab: %v", err)
	}
	if f.dev.LiveStreams() != 0 {
		t.Errorf("live = %d after leaving camera, want 0", f.dev.LiveStreams())
	}
	if f.ctrl.SessionState() != session.StateClosed {
		t.Errorf("session = %v, want closed", f.ctrl.SessionState())
	}

	if err := f.ctrl.SelectTab(TabSettings); err != nil {
		t.Fatalf("SelectTab: %v", err)
	}
	if f.dev.Opened() != 1 {
		t.Errorf("gallery -> settings opened the device")
	}

	if err := f.ctrl.SelectTab(TabCamera); err != nil {
		t.Fatalf("SelectTab: %v", err)
	}
	f.ctrl.Settle()
	if f.ctrl.SessionState() != session.StateLive {
		t.Errorf("session = %v, want live", f.ctrl.SessionState())
	}
	if f.dev.Opened() != 2 || f.dev.LiveStreams() != 1 {
		t.Errorf("opened=%d live=%d, want 2/1", f.dev.Opened(), f.dev.LiveStreams())
	}
}

func TestSelectTab_SameTabIsNoop(t *testing.T) {
	f := newFixture(t, Options{})
	_ = f.ctrl.SelectTab(TabCamera)
	f.ctrl.Settle()
	if f.dev.Opened() != 1 {
		t.Errorf("opened = %d, want 1", f.dev.Opened())
	}
}

func TestSelectTab_Unknown(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.ctrl.SelectTab("history"); !errors.Is(err, ErrUnknownTab) {
		t.Errorf("err = %v, want ErrUnknownTab", err)
	}
	if f.ctrl.Snapshot().ActiveTab != TabCamera {
		t.Error("unknown tab should not change the active tab")
	}
}

func TestShutdown_ReleasesCamera(t *testing.T) {
	f := newFixture(t, Options{})
	f.ctrl.Shutdown()
	if f.dev.LiveStreams() != 0 {
		t.Errorf("live = %d after Shutdown, want 0", f.dev.LiveStreams())
	}
}

func TestRandomTabSwitching_NoLeakedStreams(t *testing.T) {
	tabs := []Tab{TabCamera, TabGallery, TabSettings}
	for seed := int64(1); seed <= 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		dev := camera.NewSyntheticDevice(200*time.Microsecond, false)
		pipe := capture.NewPipeline(&capture.JPEGEncoder{}, capture.PlaceholderRecognizer{}, nil)
		mgr := session.NewManager(dev, camera.Constraints{Width: 8, Height: 8}, pipe)
		ctrl := New(mgr, nil, Options{})

		for i := 0; i < 30; i++ {
			_ = ctrl.SelectTab(tabs[rng.Intn(len(tabs))])
			time.Sleep(time.Duration(rng.Intn(300)) * time.Microsecond)
		}
		ctrl.Shutdown()

		if dev.LiveStreams() != 0 {
			t.Errorf("seed %d: live = %d after Shutdown", seed, dev.LiveStreams())
		}
		if s := mgr.Stats(); s.Acquired != dev.Opened() || s.Released != s.Acquired {
			t.Errorf("seed %d: stats = %+v, opened = %d", seed, s, dev.Opened())
		}
	}
}

// ---------- capture ----------

func TestCapture_PrependsAndNotifies(t *testing.T) {
	f := newFixture(t, Options{})

	item := mustCapture(t, f.ctrl)
	st := f.ctrl.Snapshot()
	if len(st.Items) != 1 || st.Items[0].ID != item.ID {
		t.Fatalf("items = %v", st.Items)
	}
	if item.Label != "Молоко 3.2%" || item.Price != "89.90 ₽" {
		t.Errorf("item = %+v", item.WithoutImage())
	}

	events := f.rec.Events()
	if len(events) != 1 || events[0] != (notify.Event{Kind: notify.Success, Msg: MsgRecognized}) {
		t.Errorf("events = %v", events)
	}
}

func TestCapture_NotLiveIsSilentNoop(t *testing.T) {
	f := newFixture(t, Options{InitialTab: TabGallery})

	item, err := f.ctrl.Capture(context.Background())
	if err != nil || item != nil {
		t.Errorf("Capture = %v, %v; want nil, nil", item, err)
	}
	if n := len(f.ctrl.Snapshot().Items); n != 0 {
		t.Errorf("items = %d, want 0", n)
	}
	if f.rec.Len() != 0 {
		t.Errorf("events = %v, want none", f.rec.Events())
	}
}

func TestCapture_AfterLeavingCameraIsNoop(t *testing.T) {
	f := newFixture(t, Options{})
	mustCapture(t, f.ctrl)
	_ = f.ctrl.SelectTab(TabGallery)

	item, err := f.ctrl.Capture(context.Background())
	if err != nil || item != nil {
		t.Errorf("Capture = %v, %v; want nil, nil", item, err)
	}
	if n := len(f.ctrl.Snapshot().Items); n != 1 {
		t.Errorf("items = %d, want 1", n)
	}
}

// blockingSession captures only when released.
type blockingSession struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSession) Start(context.Context) <-chan error {
	ch := make(chan error, 1)
	ch <- nil
	return ch
}

func (b *blockingSession) Close() {}

func (b *blockingSession) Frame() (image.Image, error) { return nil, session.ErrNotReady }

func (b *blockingSession) State() session.State { return session.StateLive }

func (b *blockingSession) Capture(context.Context) (capture.CapturedItem, error) {
	b.entered <- struct{}{}
	<-b.release
	return capture.CapturedItem{ID: "slow", Price: "1 ₽"}, nil
}

func TestCapture_BusyWhileInProgress(t *testing.T) {
	bs := &blockingSession{entered: make(chan struct{}), release: make(chan struct{})}
	ctrl := New(bs, nil, Options{})
	defer ctrl.Shutdown()

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Capture(context.Background())
		done <- err
	}()
	<-bs.entered

	if _, err := ctrl.Capture(context.Background()); !errors.Is(err, ErrCaptureBusy) {
		t.Errorf("second capture err = %v, want ErrCaptureBusy", err)
	}
	close(bs.release)
	if err := <-done; err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if n := len(ctrl.Snapshot().Items); n != 1 {
		t.Errorf("items = %d, want 1", n)
	}
}

func TestCapture_DroppedWhenTabLeftMidCapture(t *testing.T) {
	bs := &blockingSession{entered: make(chan struct{}), release: make(chan struct{})}
	rec := &notify.Recorder{}
	ctrl := New(bs, rec, Options{})
	defer ctrl.Shutdown()

	type result struct {
		item *capture.CapturedItem
		err  error
	}
	done := make(chan result, 1)
	go func() {
		item, err := ctrl.Capture(context.Background())
		done <- result{item, err}
	}()
	<-bs.entered

	if err := ctrl.SelectTab(TabGallery); err != nil {
		t.Fatal(err)
	}
	close(bs.release)

	if r := <-done; r.item != nil || r.err != nil {
		t.Errorf("Capture = %v, %v; want nil, nil", r.item, r.err)
	}
	if n := len(ctrl.Snapshot().Items); n != 0 {
		t.Errorf("items = %d, want 0 after leaving the camera tab", n)
	}
	if rec.Len() != 0 {
		t.Errorf("dropped capture should not notify, got %+v", rec.Events())
	}
}

// ---------- delete ----------

func TestScenario_CaptureTwiceDeleteFirst(t *testing.T) {
	f := newFixture(t, Options{})
	if n := len(f.ctrl.Snapshot().Items); n != 0 {
		t.Fatalf("start with %d items", n)
	}

	first := mustCapture(t, f.ctrl)
	second := mustCapture(t, f.ctrl)

	st := f.ctrl.Snapshot()
	if len(st.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(st.Items))
	}
	if st.Items[0].ID != second.ID || st.Items[1].ID != first.ID {
		t.Errorf("order = [%s %s], want most recent first [%s %s]", st.Items[0].ID, st.Items[1].ID, second.ID, first.ID)
	}
	if first.ID == second.ID {
		t.Error("ids should be distinct")
	}

	if err := f.ctrl.Delete(st.Items[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	st = f.ctrl.Snapshot()
	if len(st.Items) != 1 || st.Items[0].ID != first.ID {
		t.Errorf("items after delete = %v, want only %s", st.Items, first.ID)
	}
}

func TestDelete_KeepsOthersInOrder(t *testing.T) {
	f := newFixture(t, Options{})
	for i := 0; i < 5; i++ {
		mustCapture(t, f.ctrl)
	}
	before := f.ctrl.Snapshot().Items
	victim := before[2].ID

	if err := f.ctrl.Delete(victim); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	after := f.ctrl.Snapshot().Items
	want := []string{before[0].ID, before[1].ID, before[3].ID, before[4].ID}
	if len(after) != len(want) {
		t.Fatalf("items = %d, want %d", len(after), len(want))
	}
	for i, id := range want {
		if after[i].ID != id {
			t.Errorf("item %d = %s, want %s", i, after[i].ID, id)
		}
	}
	last := f.rec.Events()[f.rec.Len()-1]
	if last != (notify.Event{Kind: notify.Success, Msg: MsgDeleted}) {
		t.Errorf("last event = %v", last)
	}
}

func TestDelete_Unknown(t *testing.T) {
	f := newFixture(t, Options{})
	mustCapture(t, f.ctrl)
	n := f.rec.Len()

	if err := f.ctrl.Delete("missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("err = %v, want ErrItemNotFound", err)
	}
	if len(f.ctrl.Snapshot().Items) != 1 {
		t.Error("unknown id should not remove anything")
	}
	if f.rec.Len() != n {
		t.Error("unknown id should not notify")
	}
}

func TestItem_Lookup(t *testing.T) {
	f := newFixture(t, Options{})
	item := mustCapture(t, f.ctrl)

	got, err := f.ctrl.Item(item.ID)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if got.ImageData == "" {
		t.Error("Item should include image data")
	}
	if _, err := f.ctrl.Item("nope"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("err = %v, want ErrItemNotFound", err)
	}
}

// ---------- settings and stats ----------

func TestToggleOfflineMode(t *testing.T) {
	f := newFixture(t, Options{InitialTab: TabSettings, OfflineMode: true})

	if on := f.ctrl.ToggleOfflineMode(); on {
		t.Error("toggle from true should return false")
	}
	if f.ctrl.Snapshot().OfflineMode {
		t.Error("offline mode should be off")
	}
	if on := f.ctrl.ToggleOfflineMode(); !on {
		t.Error("toggle from false should return true")
	}

	want := []notify.Event{
		{Kind: notify.Success, Msg: MsgOfflineOff},
		{Kind: notify.Success, Msg: MsgOfflineOn},
	}
	got := f.rec.Events()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestToggleOfflineMode_Concurrent(t *testing.T) {
	f := newFixture(t, Options{InitialTab: TabSettings, OfflineMode: true})

	const toggles = 200
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.ctrl.ToggleOfflineMode()
		}()
	}
	wg.Wait()

	if !f.ctrl.Snapshot().OfflineMode {
		t.Error("an even number of toggles should restore the flag")
	}
	on, off := 0, 0
	for _, ev := range f.rec.Events() {
		switch ev.Msg {
		case MsgOfflineOn:
			on++
		case MsgOfflineOff:
			off++
		}
	}
	if on != toggles/2 || off != toggles/2 {
		t.Errorf("notifications on=%d off=%d, want %d each", on, off, toggles/2)
	}
}

func TestSetOfflineMode(t *testing.T) {
	f := newFixture(t, Options{InitialTab: TabSettings})
	f.ctrl.SetOfflineMode(true)
	if !f.ctrl.Snapshot().OfflineMode {
		t.Error("offline mode should be on")
	}
	if f.rec.Len() != 1 {
		t.Errorf("events = %d, want 1", f.rec.Len())
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, Options{})
	if st := f.ctrl.Stats(); st.TotalScans != 0 || st.LastPrice != NoPrice {
		t.Errorf("empty stats = %+v", st)
	}
	mustCapture(t, f.ctrl)
	mustCapture(t, f.ctrl)
	if st := f.ctrl.Stats(); st.TotalScans != 2 || st.LastPrice != "89.90 ₽" {
		t.Errorf("stats = %+v", st)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	f := newFixture(t, Options{})
	mustCapture(t, f.ctrl)
	snap := f.ctrl.Snapshot()
	snap.Items[0].Price = "0 ₽"
	snap.Items = nil
	if got := f.ctrl.Snapshot().Items; len(got) != 1 || got[0].Price != "89.90 ₽" {
		t.Errorf("state changed through snapshot: %v", got)
	}
}

func TestParseTab(t *testing.T) {
	for _, s := range []string{"camera", "gallery", "settings"} {
		if tab, err := ParseTab(s); err != nil || string(tab) != s {
			t.Errorf("ParseTab(%q) = %q, %v", s, tab, err)
		}
	}
	for _, s := range []string{"", "Camera", "history"} {
		if _, err := ParseTab(s); !errors.Is(err, ErrUnknownTab) {
			t.Errorf("ParseTab(%q) err = %v, want ErrUnknownTab", s, err)
		}
	}
}
