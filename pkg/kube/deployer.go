package kube

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jonboulle/clockwork"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/yaml"
)

// Deployer applies the deploy manifest and tracks the rollout
type Deployer struct {
	clientset kubernetes.Interface
	clock     clockwork.Clock
}

func NewDeployer(kubeconfigPath string) (*Deployer, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load kubeconfig %s", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("cannot create kubernetes client %s", err)
	}

	return &Deployer{
		clientset: clientset,
		clock:     clockwork.NewRealClock(),
	}, nil
}

func NewDeployerWithClientset(clientset kubernetes.Interface, clock clockwork.Clock) *Deployer {
	return &Deployer{
		clientset: clientset,
		clock:     clock,
	}
}

// Objects are the typed documents of the deploy manifest
type Objects struct {
	Deployment *appsv1.Deployment
	Services   []*corev1.Service
}

var documentSeparator = regexp.MustCompile(`(?m)^---\s*$`)

// Decode parses a multi document manifest into typed objects.
// The manifest contract covers Deployments and Services,
// an unknown kind is an error naming the kind.
func Decode(manifest string) (*Objects, error) {
	objects := &Objects{}

	for _, document := range documentSeparator.Split(manifest, -1) {
		if strings.TrimSpace(document) == "" {
			continue
		}

		var head struct {
			Kind     string `json:"kind"`
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
		}
		err := yaml.Unmarshal([]byte(document), &head)
		if err != nil {
			return nil, fmt.Errorf("cannot parse manifest document %s", err)
		}

		switch head.Kind {
		case "Deployment":
			if objects.Deployment != nil {
				return nil, fmt.Errorf("manifest holds more than one Deployment")
			}
			var deployment appsv1.Deployment
			err := yaml.Unmarshal([]byte(document), &deployment)
			if err != nil {
				return nil, fmt.Errorf("cannot parse Deployment %s", err)
			}
			objects.Deployment = &deployment
		case "Service":
			var service corev1.Service
			err := yaml.Unmarshal([]byte(document), &service)
			if err != nil {
				return nil, fmt.Errorf("cannot parse Service %s", err)
			}
			objects.Services = append(objects.Services, &service)
		case "":
			return nil, fmt.Errorf("manifest document %s has no kind", head.Metadata.Name)
		default:
			return nil, fmt.Errorf("manifest kind %s is not supported, only Deployments and Services are", head.Kind)
		}
	}

	if objects.Deployment == nil {
		return nil, fmt.Errorf("manifest holds no Deployment")
	}

	return objects, nil
}

// CurrentImage reads the live deployment's image, the rollback point.
// Empty on first deploys.
func (d *Deployer) CurrentImage(ctx context.Context, namespace string, name string) (string, error) {
	deployment, err := d.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cannot read deployment %s/%s: %s", namespace, name, err)
	}
	containers := deployment.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return "", nil
	}
	return containers[0].Image, nil
}

// Apply creates or updates the manifest objects.
// Returns the generation of the applied deployment, the rollout poller waits on it.
func (d *Deployer) Apply(ctx context.Context, namespace string, objects *Objects) (int64, error) {
	applied, err := d.applyDeployment(ctx, namespace, objects.Deployment)
	if err != nil {
		return 0, err
	}

	for _, service := range objects.Services {
		err := d.applyService(ctx, namespace, service)
		if err != nil {
			return 0, err
		}
	}

	return applied.Generation, nil
}

func (d *Deployer) applyDeployment(ctx context.Context, namespace string, deployment *appsv1.Deployment) (*appsv1.Deployment, error) {
	if deployment.Namespace != "" {
		namespace = deployment.Namespace
	}

	deployments := d.clientset.AppsV1().Deployments(namespace)
	existing, err := deployments.Get(ctx, deployment.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		created, err := deployments.Create(ctx, deployment, metav1.CreateOptions{})
		if err != nil {
			return nil, fmt.Errorf("cannot create deployment %s: %s", deployment.Name, err)
		}
		return created, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read deployment %s: %s", deployment.Name, err)
	}

	deployment.ResourceVersion = existing.ResourceVersion
	updated, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{})
	if err != nil {
		return nil, fmt.Errorf("cannot update deployment %s: %s", deployment.Name, err)
	}
	return updated, nil
}

func (d *Deployer) applyService(ctx context.Context, namespace string, service *corev1.Service) error {
	if service.Namespace != "" {
		namespace = service.Namespace
	}

	services := d.clientset.CoreV1().Services(namespace)
	existing, err := services.Get(ctx, service.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err := services.Create(ctx, service, metav1.CreateOptions{})
		if err != nil {
			return fmt.Errorf("cannot create service %s: %s", service.Name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read service %s: %s", service.Name, err)
	}

	// ClusterIP and resource version are immutable server side state
	service.ResourceVersion = existing.ResourceVersion
	service.Spec.ClusterIP = existing.Spec.ClusterIP
	service.Spec.ClusterIPs = existing.Spec.ClusterIPs
	_, err = services.Update(ctx, service, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("cannot update service %s: %s", service.Name, err)
	}
	return nil
}

// SetImage re-points the deployment's containers at an image, the rollback path
func (d *Deployer) SetImage(ctx context.Context, namespace string, name string, image string) (int64, error) {
	deployments := d.clientset.AppsV1().Deployments(namespace)
	deployment, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("cannot read deployment %s/%s: %s", namespace, name, err)
	}

	for i := range deployment.Spec.Template.Spec.Containers {
		deployment.Spec.Template.Spec.Containers[i].Image = image
	}

	updated, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{})
	if err != nil {
		return 0, fmt.Errorf("cannot update deployment %s/%s: %s", namespace, name, err)
	}
	return updated.Generation, nil
}
