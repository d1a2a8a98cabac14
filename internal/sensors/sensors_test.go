package sensors

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// fakeMotionDriver hands the deliver callback back to the test so samples
// can be injected synchronously.
type fakeMotionDriver struct {
	available   bool
	deliver     func(x, y, z float32)
	registers   int
	unregisters int
	rateHz      int
}

func (d *fakeMotionDriver) Register(rateHz int, deliver func(x, y, z float32)) bool {
	d.registers++
	d.rateHz = rateHz
	if !d.available {
		return false
	}
	d.deliver = deliver
	return true
}

func (d *fakeMotionDriver) Unregister() {
	d.unregisters++
	d.deliver = nil
}

type fakeLocationProvider struct {
	err          error
	deliver      func(Fix)
	unsubscribes int
}

func (p *fakeLocationProvider) Subscribe(ctx context.Context, interval time.Duration, deliver func(Fix)) error {
	if p.err != nil {
		return p.err
	}
	p.deliver = deliver
	return nil
}

func (p *fakeLocationProvider) Unsubscribe() {
	p.unsubscribes++
	p.deliver = nil
}

func TestMotionSamplerSmoothing(t *testing.T) {
	driver := &fakeMotionDriver{available: true}
	sampler := NewMotionSampler(driver)
	sampler.Start(50)
	defer sampler.Stop()

	if driver.rateHz != 50 {
		t.Errorf("expected registration at 50 Hz, got %d", driver.rateHz)
	}

	// Resting gravity: raw magnitude 1.0, smoothed from a zero seed.
	driver.deliver(0, 0, 1)
	first := <-sampler.Samples()
	if math.Abs(float64(first.Magnitude)-0.8) > 1e-6 {
		t.Errorf("first sample: expected magnitude 0.8, got %v", first.Magnitude)
	}

	// Second identical sample: 0.2*0.8 + 0.8*1.0 = 0.96.
	driver.deliver(0, 0, 1)
	second := <-sampler.Samples()
	if math.Abs(float64(second.Magnitude)-0.96) > 1e-6 {
		t.Errorf("second sample: expected magnitude 0.96, got %v", second.Magnitude)
	}

	// Axes pass through unsmoothed.
	driver.deliver(0.3, -0.4, 1.2)
	third := <-sampler.Samples()
	if third.X != 0.3 || third.Y != -0.4 || third.Z != 1.2 {
		t.Errorf("expected raw axes (0.3, -0.4, 1.2), got (%v, %v, %v)", third.X, third.Y, third.Z)
	}
}

func TestMotionSamplerSmoothingTracksSpikes(t *testing.T) {
	driver := &fakeMotionDriver{available: true}
	sampler := NewMotionSampler(driver)
	sampler.Start(50)
	defer sampler.Stop()

	// Settle near 1 g, then spike. The smoothed magnitude must carry most
	// of the spike through (weight 0.8 on the raw value).
	for i := 0; i < 20; i++ {
		driver.deliver(0, 0, 1)
		<-sampler.Samples()
	}
	driver.deliver(0, 0, 4)
	spike := <-sampler.Samples()
	if spike.Magnitude < 3.0 {
		t.Errorf("expected smoothed spike above 3.0 g, got %v", spike.Magnitude)
	}
}

func TestMotionSamplerDropsOldestWhenFull(t *testing.T) {
	driver := &fakeMotionDriver{available: true}
	sampler := NewMotionSampler(driver)
	sampler.Start(50)
	defer sampler.Stop()

	// Nobody consumes: overfill the buffer by ten.
	for i := 0; i < motionBufferCap+10; i++ {
		driver.deliver(float32(i), 0, 0)
	}

	if sampler.Dropped() != 10 {
		t.Errorf("expected 10 dropped samples, got %d", sampler.Dropped())
	}

	// The survivors are the newest motionBufferCap samples.
	first := <-sampler.Samples()
	if first.X != 10 {
		t.Errorf("expected oldest surviving sample x=10, got %v", first.X)
	}
}

func TestMotionSamplerStartStopIdempotent(t *testing.T) {
	driver := &fakeMotionDriver{available: true}
	sampler := NewMotionSampler(driver)

	sampler.Start(50)
	sampler.Start(50)
	if driver.registers != 1 {
		t.Errorf("expected a single registration, got %d", driver.registers)
	}

	sampler.Stop()
	sampler.Stop()
	if driver.unregisters != 1 {
		t.Errorf("expected a single unregistration, got %d", driver.unregisters)
	}

	// Stop without a prior Start is a no-op.
	fresh := NewMotionSampler(&fakeMotionDriver{available: true})
	fresh.Stop()
}

func TestMotionSamplerUnavailableSensor(t *testing.T) {
	driver := &fakeMotionDriver{available: false}
	sampler := NewMotionSampler(driver)
	sampler.Start(50)

	// Registration was refused: Stop must not unregister.
	sampler.Stop()
	if driver.unregisters != 0 {
		t.Errorf("expected no unregistration after refused registration, got %d", driver.unregisters)
	}

	select {
	case s := <-sampler.Samples():
		t.Errorf("expected silent stream, got sample %+v", s)
	default:
	}
}

func TestLocationSampler(t *testing.T) {
	provider := &fakeLocationProvider{}
	sampler := NewLocationSampler(provider)

	if err := sampler.Start(context.Background(), 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	provider.deliver(Fix{TimestampMS: 1, Lat: -6.89, Lon: 109.38, Alt: 12})
	fix := <-sampler.Fixes()
	if fix.Lat != -6.89 || fix.Lon != 109.38 {
		t.Errorf("expected fix (-6.89, 109.38), got (%v, %v)", fix.Lat, fix.Lon)
	}

	sampler.Stop()
	sampler.Stop()
	if provider.unsubscribes != 1 {
		t.Errorf("expected a single unsubscribe, got %d", provider.unsubscribes)
	}
}

func TestLocationSamplerSubscribeError(t *testing.T) {
	denied := errors.New("location permission denied")
	provider := &fakeLocationProvider{err: denied}
	sampler := NewLocationSampler(provider)

	if err := sampler.Start(context.Background(), 1); !errors.Is(err, denied) {
		t.Fatalf("expected subscribe error, got %v", err)
	}

	// The failed start left the sampler stopped; a retry subscribes again.
	provider.err = nil
	if err := sampler.Start(context.Background(), 1); err != nil {
		t.Fatalf("retry after failure should subscribe, got %v", err)
	}
}

func TestLocationSamplerDropsOldestWhenFull(t *testing.T) {
	provider := &fakeLocationProvider{}
	sampler := NewLocationSampler(provider)
	if err := sampler.Start(context.Background(), 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sampler.Stop()

	for i := 0; i < locationBufferCap+3; i++ {
		provider.deliver(Fix{TimestampMS: int64(i)})
	}
	if sampler.Dropped() != 3 {
		t.Errorf("expected 3 dropped fixes, got %d", sampler.Dropped())
	}
	first := <-sampler.Fixes()
	if first.TimestampMS != 3 {
		t.Errorf("expected oldest surviving fix ts=3, got %d", first.TimestampMS)
	}
}
