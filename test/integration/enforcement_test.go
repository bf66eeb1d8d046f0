//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/zenmode/internal/control"
	"github.com/eliteGoblin/zenmode/internal/daemon"
	"github.com/eliteGoblin/zenmode/internal/domain"
	"github.com/eliteGoblin/zenmode/internal/infra"
	"github.com/eliteGoblin/zenmode/internal/state"
	"github.com/eliteGoblin/zenmode/internal/usecase"
	"github.com/eliteGoblin/zenmode/test/fixtures"
)

const pollInterval = 50 * time.Millisecond

// pinnedClock reports a fixed wall time so schedule tests do not depend on
// when the suite runs.
type pinnedClock struct{ now time.Time }

func (c pinnedClock) Now() time.Time                         { return c.now }
func (c pinnedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Monday 2024-01-01.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, time.Local)
}

func mondayNineToFive() domain.Schedule {
	s, err := domain.NewSchedule(domain.Window{
		Day:   time.Monday,
		Start: domain.TimeOfDay{Hour: 9},
		End:   domain.TimeOfDay{Hour: 17},
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Enforcement against real processes", func() {
	var (
		decoy  *fixtures.Decoy
		logger *zap.Logger
	)

	newLoop := func(shared *state.Shared, clock domain.Clock) *daemon.Loop {
		enforcer := usecase.NewEnforcer(infra.NewProcessManager(), clock, logger)
		return daemon.NewLoop(daemon.LoopConfig{PollInterval: pollInterval}, shared, enforcer, clock, logger)
	}

	BeforeEach(func() {
		logger = zap.NewNop()

		var err error
		decoy, err = fixtures.StartDecoy(fixtures.UniqueToken("zen-decoy"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(decoy.Stop)
	})

	Context("inside a block window", func() {
		It("kills a process whose argv carries a blocked identifier", func() {
			shared := state.New(mondayNineToFive(), domain.NewBlocklist(decoy.Token))
			loop := newLoop(shared, pinnedClock{now: mondayAt(10, 0)})
			Expect(loop.Start(context.Background())).To(Succeed())
			DeferCleanup(loop.Stop)

			Eventually(decoy.Exited()).WithTimeout(5 * time.Second).Should(BeClosed())
			Eventually(func() int64 { return loop.Stats().Killed }).Should(BeNumerically(">=", 1))
		})

		It("leaves a process alone when the identifier only prefixes a token", func() {
			shared := state.New(mondayNineToFive(), domain.NewBlocklist("zen-decoy"))
			loop := newLoop(shared, pinnedClock{now: mondayAt(10, 0)})
			Expect(loop.Start(context.Background())).To(Succeed())
			DeferCleanup(loop.Stop)

			Consistently(decoy.Alive).WithTimeout(10 * pollInterval).Should(BeTrue())
		})

		It("never kills its own process", func() {
			shared := state.New(mondayNineToFive(), domain.NewBlocklist(os.Args[0]))
			loop := newLoop(shared, pinnedClock{now: mondayAt(10, 0)})
			Expect(loop.Start(context.Background())).To(Succeed())
			DeferCleanup(loop.Stop)

			Eventually(func() int64 { return loop.Stats().Scans }).WithTimeout(5 * time.Second).Should(BeNumerically(">=", 3))
			Expect(loop.Stats().Killed).To(BeZero())
		})

		It("does nothing with an empty blocklist", func() {
			shared := state.New(mondayNineToFive(), domain.NewBlocklist())
			loop := newLoop(shared, pinnedClock{now: mondayAt(10, 0)})
			Expect(loop.Start(context.Background())).To(Succeed())
			DeferCleanup(loop.Stop)

			Consistently(decoy.Alive).WithTimeout(10 * pollInterval).Should(BeTrue())
			Expect(loop.Stats().Killed).To(BeZero())
		})
	})

	Context("outside every block window", func() {
		It("leaves blocked processes running in the evening", func() {
			shared := state.New(mondayNineToFive(), domain.NewBlocklist(decoy.Token))
			loop := newLoop(shared, pinnedClock{now: mondayAt(20, 0)})
			Expect(loop.Start(context.Background())).To(Succeed())
			DeferCleanup(loop.Stop)

			Consistently(decoy.Alive).WithTimeout(10 * pollInterval).Should(BeTrue())
			Expect(loop.Stats().Scans).To(BeZero())
		})

		It("leaves blocked processes running with an empty schedule", func() {
			shared := state.New(domain.Schedule{}, domain.NewBlocklist(decoy.Token))
			loop := newLoop(shared, pinnedClock{now: mondayAt(10, 0)})
			Expect(loop.Start(context.Background())).To(Succeed())
			DeferCleanup(loop.Stop)

			Consistently(decoy.Alive).WithTimeout(10 * pollInterval).Should(BeTrue())
		})
	})

	Context("driven by the controller", func() {
		var ctrl *control.Controller

		BeforeEach(func() {
			clock := pinnedClock{now: mondayAt(10, 0)}
			shared := state.New(mondayNineToFive(), domain.NewBlocklist())
			ctrl = control.NewController(shared, func(sh *state.Shared) *daemon.Loop {
				return newLoop(sh, clock)
			}, clock, logger)
			DeferCleanup(ctrl.Stop)
		})

		It("kills a process added to the blocklist while running", func() {
			Expect(ctrl.Start(context.Background())).To(Succeed())
			Consistently(decoy.Alive).WithTimeout(5 * pollInterval).Should(BeTrue())

			Expect(ctrl.AddApplication(decoy.Token)).To(Succeed())
			Eventually(decoy.Exited()).WithTimeout(5 * time.Second).Should(BeClosed())
		})

		It("stops killing once toggled off", func() {
			Expect(ctrl.AddApplication(decoy.Token)).To(Succeed())

			running, err := ctrl.Toggle(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(running).To(BeTrue())
			Eventually(decoy.Exited()).WithTimeout(5 * time.Second).Should(BeClosed())

			running, err = ctrl.Toggle(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(running).To(BeFalse())

			second, err := fixtures.StartDecoy(decoy.Token)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(second.Stop)

			Consistently(second.Alive).WithTimeout(10 * pollInterval).Should(BeTrue())
		})
	})
})
