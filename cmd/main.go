package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/configs"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/distribution"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/fleet"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/hub"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/jobs"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/logger"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/sources"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/utils"
)

func main() {
	log := logger.DefaultZapLogger()
	defer func() { _ = log.Desugar().Sync() }() // ensure it's invoked only once within the main process
	utils.PrintRuntimeInfo()

	// adding and parsing flags should be done before the call of 'ctrl.GetConfigOrDie()',
	// otherwise kubeconfig will not be passed to the distributor process
	config := parseFlags()
	logger.SetLogLevel(logger.LogLevel(config.LogLevel))

	restConfig := ctrl.GetConfigOrDie()
	restConfig.QPS = config.QPS
	restConfig.Burst = config.Burst

	if err := doMain(ctrl.SetupSignalHandler(), config, restConfig); err != nil {
		log.Fatalf("failed to run the trust-bundle distributor: %v", err)
	}
}

func doMain(ctx context.Context, config *configs.DistributorConfig, restConfig *rest.Config) error {
	log := logger.ZapLogger("trust-distributor")

	hubClient, err := client.New(restConfig, client.Options{Scheme: configs.GetRuntimeScheme()})
	if err != nil {
		return fmt.Errorf("failed to init the runtime client: %w", err)
	}

	if config.EnablePprof {
		go utils.StartDefaultPprofServer()
	}

	reconciler := fleet.NewReconciler(
		hubClient,
		&sources.Collector{
			Hub:     &sources.HubReader{Client: hubClient},
			Managed: sources.NewManagedClusterReader(hubClient, config.SourceTimeout),
			Timeout: config.SourceTimeout,
		},
		&hub.Configurator{Client: hubClient},
		&distribution.PolicyTransport{Client: hubClient},
		fleet.Options{
			WorkerPoolSize:         config.WorkerPoolSize,
			DeliveryRetries:        uint64(config.DeliveryRetries),
			DeliveryInterval:       config.DeliveryInterval,
			MaxConsecutiveFailures: config.MaxConsecutiveFailures,
			ApplyTimeout:           config.ApplyTimeout,
		},
	)

	if config.Once {
		return jobs.NewReconcileJob(ctx, reconciler).Run()
	}

	ticker := time.NewTicker(config.ResyncInterval)
	defer ticker.Stop()
	for {
		if err := jobs.NewReconcileJob(ctx, reconciler).Run(); err != nil {
			log.Errorw("reconciliation pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			log.Info("shutting down the trust-bundle distributor")
			return nil
		case <-ticker.C:
		}
	}
}

func parseFlags() *configs.DistributorConfig {
	config := &configs.DistributorConfig{}

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.DurationVar(&config.ResyncInterval, "resync-interval", 60*time.Second,
		"The sleep between two reconciliation passes.")
	pflag.BoolVar(&config.Once, "once", false,
		"Run a single reconciliation pass and exit.")
	pflag.DurationVar(&config.SourceTimeout, "source-timeout", 30*time.Second,
		"The timeout of one source read, credential acquisition included.")
	pflag.DurationVar(&config.ApplyTimeout, "apply-timeout", 30*time.Second,
		"The timeout of one delivery attempt to one target cluster.")
	pflag.IntVar(&config.WorkerPoolSize, "worker-pool-size", 5,
		"The goroutine number to deliver the bundle to managed clusters.")
	pflag.IntVar(&config.DeliveryRetries, "delivery-retries", 3,
		"The within-pass retry budget of one target's delivery.")
	pflag.DurationVar(&config.DeliveryInterval, "delivery-interval", time.Second,
		"The initial backoff interval between delivery retries.")
	pflag.IntVar(&config.MaxConsecutiveFailures, "max-consecutive-failures", 60,
		"The cross-pass failure budget before a target is surfaced as permanently failed.")
	pflag.BoolVar(&config.EnablePprof, "enable-pprof", false, "Enable the pprof tool.")
	pflag.StringVar(&config.LogLevel, "log-level", "info", "The log level: debug|info|warn|error.")
	pflag.Float32Var(&config.QPS, "qps", 150, "QPS for the kube client.")
	pflag.IntVar(&config.Burst, "burst", 300, "Burst for the kube client.")
	pflag.Parse()

	return config
}
