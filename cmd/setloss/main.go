package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"

	"github.com/joho/godotenv"

	"github.com/nvr-ai/go-setloss/loss"
	"github.com/nvr-ai/go-setloss/models"
	"github.com/nvr-ai/go-setloss/profiler"
	"github.com/nvr-ai/go-setloss/util"
)

func main() {
	// Parse command line arguments
	var (
		batchPath  string
		configPath string
		envPath    string
		workers    int
		debug      bool
		profile    bool
		classes    string
	)
	flag.StringVar(&batchPath, "batch", "", "JSON sample file or directory of sample files")
	flag.StringVar(&configPath, "config", "", "YAML loss configuration (defaults are used when empty)")
	flag.StringVar(&envPath, "env", ".env", "Environment file with SETLOSS_* overrides")
	flag.IntVar(&workers, "workers", 0, "Images matched concurrently (0 keeps the configured value)")
	flag.BoolVar(&debug, "debug", false, "Log per-image matching details")
	flag.BoolVar(&profile, "profile", false, "Print stage timings and memory usage")
	flag.StringVar(&classes, "classes", "", "Class set used to name resolved labels (coco, voc)")
	flag.Parse()

	if batchPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("❌ Failed to load %s: %v", envPath, err)
	}

	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if workers > 0 {
		config.Workers = workers
	}
	config.Debug = config.Debug || debug

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var set *models.ClassSet
	if classes != "" {
		if set, err = models.LookupClassSet(classes); err != nil {
			log.Fatalf("❌ %v", err)
		}
		if set.Len() != config.NumClasses {
			log.Fatalf("❌ Class set %q has %d classes, configuration has %d", set.Style, set.Len(), config.NumClasses)
		}
	}

	prof := profiler.New()
	if err := run(ctx, config, batchPath, set, prof); err != nil {
		log.Fatalf("❌ %v", err)
	}

	if profile {
		prof.Report(os.Stdout)
	}
}

// loadConfig reads the YAML file when given and applies SETLOSS_* overrides.
func loadConfig(path string) (loss.Config, error) {
	config := loss.DefaultConfig()
	if path != "" {
		var err error
		if config, err = loss.LoadConfig(path); err != nil {
			return config, err
		}
	}
	if err := config.ApplyEnv(); err != nil {
		return config, err
	}
	return config, config.Validate()
}

func run(ctx context.Context, config loss.Config, batchPath string, set *models.ClassSet, prof *profiler.Profiler) error {
	criterion, err := loss.New(config)
	if err != nil {
		return err
	}

	done := prof.StartOperation("load")
	files, err := util.LoadBatch(batchPath)
	done()
	if err != nil {
		return err
	}
	log.Printf("📂 Loaded %d samples from %s", len(files), batchPath)

	done = prof.StartOperation("forward")
	out, err := criterion.Forward(ctx, util.Samples(files))
	done()
	if err != nil {
		return err
	}

	losses := out.Map()
	names := make([]string, 0, len(losses))
	for name := range losses {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prof.RecordMetric(name, losses[name])
		fmt.Printf("%-10s %.6f\n", name, losses[name])
	}
	fmt.Printf("%-10s %.6f\n", "weighted", out.Weighted)

	if set != nil {
		if err := printLabels(out, set); err != nil {
			return err
		}
	}

	log.Printf("✅ matched=%d classes=%d gain=%.1f workers=%d",
		out.Matched, config.NumClasses, config.Gain, config.Workers)
	return nil
}

// printLabels counts resolved labels across the batch by class name.
func printLabels(out *loss.Breakdown, set *models.ClassSet) error {
	counts := make(map[string]int)
	for _, img := range out.Images {
		for _, label := range img.Labels {
			name, err := set.Name(label)
			if err != nil {
				return err
			}
			counts[name]++
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("  %-16s %d\n", name, counts[name])
	}
	return nil
}
