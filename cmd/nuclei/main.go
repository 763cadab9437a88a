package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/sugarme/gotch"

	"github.com/sugarme/nuseg/config"
)

var (
	cfgFile string
	cfg     *config.Config
	log     = logrus.New()
)

// flag overrides, applied on top of config file
var (
	dataPath    string
	weightsPath string
	outputDir   string
	imageSize   int
	epochs      int
	batchSize   int
	validSize   int
	lr          float64
	optimizer   string
	lossName    string
	threshold   float64
	seed        int64
	cuda        bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "nuclei",
	Short: "Train and run a UNet for nuclei segmentation",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)

		return os.MkdirAll(cfg.OutputDir, 0755)
	},
}

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "specify YAML config file")
	pf.StringVar(&dataPath, "data", "", "specify data directory of samples")
	pf.StringVar(&weightsPath, "weights", "", "specify model weights file")
	pf.StringVar(&outputDir, "output", "", "specify output directory of figures and files")
	pf.IntVar(&imageSize, "image-size", 0, "specify square image size")
	pf.IntVar(&epochs, "epochs", 0, "specify number of epochs")
	pf.IntVar(&batchSize, "batch", 0, "specify batch size")
	pf.IntVar(&validSize, "valid", 0, "specify number of validation samples")
	pf.Float64Var(&lr, "lr", 0, "specify learning rate")
	pf.StringVar(&optimizer, "opt", "", "specify optimizer type (Adam or SGD)")
	pf.StringVar(&lossName, "loss", "", "specify loss (bce or combo)")
	pf.Float64Var(&threshold, "threshold", 0, "specify mask threshold")
	pf.Int64Var(&seed, "seed", 0, "specify random seed")
	pf.BoolVar(&cuda, "cuda", false, "specify whether using CUDA or not")
	pf.StringVar(&logLevel, "log-level", "", "specify log level")

	rootCmd.AddCommand(trainCmd, predictCmd, inspectCmd, submitCmd)
}

// applyFlags overrides config values with flags set on command line.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("data", func() { cfg.DataPath = dataPath })
	set("weights", func() { cfg.WeightsPath = weightsPath })
	set("output", func() { cfg.OutputDir = outputDir })
	set("image-size", func() { cfg.ImageSize = imageSize })
	set("epochs", func() { cfg.Epochs = epochs })
	set("batch", func() { cfg.BatchSize = batchSize })
	set("valid", func() { cfg.ValidSize = validSize })
	set("lr", func() { cfg.LR = lr })
	set("opt", func() { cfg.Optimizer = optimizer })
	set("loss", func() { cfg.Loss = lossName })
	set("threshold", func() { cfg.Threshold = threshold })
	set("seed", func() { cfg.Seed = seed })
	set("cuda", func() { cfg.Cuda = cuda })
	set("log-level", func() { cfg.LogLevel = logLevel })
}

func device() gotch.Device {
	if cfg.Cuda {
		return gotch.NewCuda().CudaIfAvailable()
	}
	return gotch.CPU
}

// outPath returns path of a file in output directory.
func outPath(name string) string {
	return filepath.Join(cfg.OutputDir, name)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
