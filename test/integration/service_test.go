//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/zenmode/internal/daemon"
	"github.com/eliteGoblin/zenmode/internal/domain"
	"github.com/eliteGoblin/zenmode/internal/infra"
	"github.com/eliteGoblin/zenmode/internal/state"
	"github.com/eliteGoblin/zenmode/internal/usecase"
	"github.com/eliteGoblin/zenmode/test/fixtures"
)

var _ = Describe("Background service with the encrypted registry", func() {
	var (
		registry *infra.EncryptedRegistry
		pm       domain.ProcessManager
		shared   *state.Shared
		updates  chan daemon.Update
		cancel   context.CancelFunc
		done     chan struct{}
		runErr   error
	)

	BeforeEach(func() {
		pm = infra.NewProcessManager()

		var err error
		registry, err = infra.OpenRegistry(GinkgoT().TempDir(), pm)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(registry.Close)

		logger := zap.NewNop()
		clock := pinnedClock{now: mondayAt(10, 0)}
		shared = state.New(mondayNineToFive(), domain.NewBlocklist())
		enforcer := usecase.NewEnforcer(pm, clock, logger)
		loop := daemon.NewLoop(daemon.LoopConfig{PollInterval: pollInterval}, shared, enforcer, clock, logger)

		updates = make(chan daemon.Update)
		service := daemon.NewService(
			daemon.ServiceConfig{HeartbeatInterval: pollInterval},
			loop, shared, registry, updates,
			domain.Daemon{
				PID:        os.Getpid(),
				Role:       domain.RoleEnforcer,
				StartedAt:  time.Now(),
				AppVersion: "test",
			},
			logger,
		)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		go func() {
			runErr = service.Run(ctx)
			close(done)
		}()
		DeferCleanup(func() {
			cancel()
			Eventually(done).WithTimeout(5 * time.Second).Should(BeClosed())
		})
	})

	It("registers itself as alive", func() {
		Eventually(func() bool {
			alive, _ := registry.IsAlive()
			return alive
		}).Should(BeTrue())

		entry, err := registry.GetAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(entry).NotTo(BeNil())
		Expect(entry.PID).To(Equal(os.Getpid()))
		Expect(entry.AppVersion).To(Equal("test"))
	})

	It("records scans and kills from a reloaded blocklist", func() {
		decoy, err := fixtures.StartDecoy(fixtures.UniqueToken("zen-service"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(decoy.Stop)

		updates <- daemon.Update{Schedule: mondayNineToFive(), Blocklist: domain.NewBlocklist(decoy.Token)}

		Eventually(decoy.Exited()).WithTimeout(5 * time.Second).Should(BeClosed())
		Eventually(func() int {
			entry, err := registry.GetAll()
			if err != nil || entry == nil {
				return 0
			}
			return entry.TotalKilled
		}).WithTimeout(5 * time.Second).Should(BeNumerically(">=", 1))
	})

	It("clears the registry on shutdown", func() {
		Eventually(func() bool {
			alive, _ := registry.IsAlive()
			return alive
		}).Should(BeTrue())

		cancel()
		Eventually(done).WithTimeout(5 * time.Second).Should(BeClosed())
		Expect(runErr).To(MatchError(context.Canceled))

		entry, err := registry.GetAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(entry).To(BeNil())
	})
})
