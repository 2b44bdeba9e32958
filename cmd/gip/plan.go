package main

import (
	"fmt"
	"strconv"

	"github.com/airbusgeo/gip"
	"github.com/alessio/shellescape"
	wfv1 "github.com/argoproj/argo-workflows/v3/pkg/apis/workflow/v1alpha1"
	"github.com/google/uuid"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	k8sv1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	k8smeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"
)

var defaultImage string = "build-error-this-variable-should-have-been-set-on-build"
var dockerImage string
var shell bool
var jobid string
var planSwitches string
var planCopts []string

func intOrStringPtr(val int) *intstr.IntOrString {
	a := intstr.FromInt(val)
	return &a
}

func int32Ptr(val int32) *int32 {
	a := val
	return &a
}

// shellCommands returns one quoted gdal_translate command line per chunk
func shellCommands(src, prefix string, chunks []gip.Chunk, ids []int, switches []string, coptstring []string) []string {
	cmds := make([]string, 0, len(ids))
	for _, idx := range ids {
		command := []string{"gdal_translate", "-of", "GTiff"}
		for _, co := range coptstring {
			command = append(command, "-co", co)
		}
		command = append(command, chunkSwitches(switches, chunks[idx])...)
		command = append(command, src, stripName(prefix, idx))
		cmds = append(cmds, shellescape.QuoteCommand(command))
	}
	return cmds
}

// extractJob describes how workers extract the chunks of a source dataset
type extractJob struct {
	src      string
	prefix   string
	budget   float64
	switches string
	copts    []string
	gcs      bool
}

// extractCommand returns the gip invocation extracting a single chunk. The
// chunk size is forwarded so that workers compute the same plan.
func (job extractJob) extractCommand(idx int) []string {
	command := []string{"gip",
		"--chunksize", strconv.FormatFloat(job.budget, 'g', -1, 64)}
	if job.gcs {
		command = append(command, "--gcs")
	}
	command = append(command, "extract", "--chunk", strconv.Itoa(idx))
	if job.switches != "" {
		command = append(command, "--switches", job.switches)
	}
	for _, co := range job.copts {
		command = append(command, "--co", co)
	}
	return append(command, job.src, job.prefix)
}

// chunkWorkflow returns an argo workflow extracting each chunk in its own
// step, all steps running in parallel
func chunkWorkflow(jobid, image string, job extractJob, ids []int) *wfv1.Workflow {
	wf := &wfv1.Workflow{
		ObjectMeta: k8smeta.ObjectMeta{
			GenerateName: "gip-",
			Labels: map[string]string{
				"gip/job": jobid,
			},
		},
		TypeMeta: k8smeta.TypeMeta{
			APIVersion: "argoproj.io/v1alpha1",
			Kind:       "Workflow",
		},
		Spec: wfv1.WorkflowSpec{
			TTLStrategy: &wfv1.TTLStrategy{
				SecondsAfterSuccess: int32Ptr(3600),
			},
			Entrypoint: "extract",
			TemplateDefaults: &wfv1.Template{
				Container: &k8sv1.Container{
					ImagePullPolicy: k8sv1.PullAlways,
					Resources: k8sv1.ResourceRequirements{
						Requests: k8sv1.ResourceList{
							k8sv1.ResourceCPU:    resource.MustParse("1"),
							k8sv1.ResourceMemory: memoryRequest(job.budget),
						},
					},
				},
			},
			Templates: []wfv1.Template{
				{Name: "extract"},
			},
		},
	}
	ps := wfv1.ParallelSteps{}
	for _, idx := range ids {
		ps.Steps = append(ps.Steps, wfv1.WorkflowStep{
			Name: fmt.Sprintf("chunk-%d", idx),
			Inline: &wfv1.Template{
				RetryStrategy: &wfv1.RetryStrategy{
					Limit: intOrStringPtr(5),
				},
				Container: &k8sv1.Container{
					Name:    "extract",
					Image:   image,
					Command: job.extractCommand(idx),
				},
			},
		})
	}
	if len(ps.Steps) > 0 {
		wf.Spec.Templates[0].Steps = append(wf.Spec.Templates[0].Steps, ps)
	}
	return wf
}

// memoryRequest requests twice the chunk budget plus some headroom for GDAL
func memoryRequest(budgetMB float64) resource.Quantity {
	mb := int64(2*budgetMB) + 256
	return *resource.NewQuantity(mb*1024*1024, resource.BinarySI)
}

var planCmd = &cobra.Command{
	Use:   "plan srcfile dstprefix",
	Short: "print the commands extracting every chunk of srcfile, as an argo workflow or a shell script",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcDatasetName, prefix := args[0], args[1]
		if jobid == "" {
			jobid = uuid.New().String()
		}
		switches, err := shellwords.Parse(planSwitches)
		if err != nil {
			return fmt.Errorf("invalid switches: %w", err)
		}
		if err := checkSwitches(switches); err != nil {
			return err
		}
		co, err := creationOptions(planCopts)
		if err != nil {
			return err
		}

		src, err := cfg.Open(srcDatasetName, false)
		if err != nil {
			return err
		}
		defer src.Close()
		if err := src.Chunk(); err != nil {
			return err
		}
		ids, err := selectChunks(src, bbox)
		if err != nil {
			return err
		}

		if shell {
			for _, c := range shellCommands(srcDatasetName, prefix, src.Chunks(), ids, switches, formatOptions(co)) {
				fmt.Println(c)
			}
			return nil
		}
		job := extractJob{
			src:      srcDatasetName,
			prefix:   prefix,
			budget:   cfg.ChunkSize,
			switches: planSwitches,
			copts:    planCopts,
			gcs:      useGCS,
		}
		wf := chunkWorkflow(jobid, dockerImage, job, ids)
		yb, err := yaml.Marshal(wf)
		if err != nil {
			return fmt.Errorf("marshal workflow: %w", err)
		}
		fmt.Println(string(yb))
		return nil
	},
}

func init() {
	flags := planCmd.Flags()
	flags.BoolVar(&shell, "shell", false, "output shell script instead of argo workflow")
	flags.StringVar(&dockerImage, "dockerImage", defaultImage, "docker image for workers")
	flags.StringVar(&jobid, "jobID", "", "(advanced) use predefined job identifier")
	flags.StringVar(&planSwitches, "switches", "", "gdal_translate switches applied to every chunk")
	flags.StringArrayVar(&planCopts, "co", nil, "tif creation options")
	flags.StringVar(&bbox, "bbox", "", "only plan chunks intersecting minx,miny,maxx,maxy (world coordinates)")
}
