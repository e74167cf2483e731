package kube

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const rolloutPollInterval = 2 * time.Second

// timedOutReason is set on the Progressing condition when the
// deployment missed its progress deadline
const timedOutReason = "ProgressDeadlineExceeded"

type rolloutState struct {
	done    bool
	message string
}

// WaitForRollout polls the deployment until the rollout of the given
// generation completes, mirroring what kubectl rollout status checks.
func (d *Deployer) WaitForRollout(ctx context.Context, namespace string, name string, generation int64, timeout time.Duration) error {
	deadline := d.clock.Now().Add(timeout)
	lastMessage := "rollout not observed yet"

	for {
		state, err := d.rolloutState(ctx, namespace, name, generation)
		if err != nil {
			return err
		}
		if state.done {
			return nil
		}
		lastMessage = state.message

		if !d.clock.Now().Before(deadline) {
			return fmt.Errorf("rollout of %s/%s timed out after %s: %s", namespace, name, timeout, lastMessage)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rollout of %s/%s canceled: %s", namespace, name, lastMessage)
		case <-d.clock.After(rolloutPollInterval):
		}
	}
}

func (d *Deployer) rolloutState(ctx context.Context, namespace string, name string, generation int64) (*rolloutState, error) {
	deployment, err := d.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("cannot read deployment %s/%s: %s", namespace, name, err)
	}

	if deployment.Status.ObservedGeneration < generation {
		return &rolloutState{message: "waiting for the spec update to be observed"}, nil
	}

	if condition := progressingCondition(deployment); condition != nil && condition.Reason == timedOutReason {
		return nil, fmt.Errorf("deployment %s/%s exceeded its progress deadline: %s", namespace, name, condition.Message)
	}

	desired := int32(1)
	if deployment.Spec.Replicas != nil {
		desired = *deployment.Spec.Replicas
	}

	if deployment.Status.UpdatedReplicas < desired {
		return &rolloutState{
			message: fmt.Sprintf("%d of %d updated replicas are ready", deployment.Status.UpdatedReplicas, desired),
		}, nil
	}
	if deployment.Status.Replicas > deployment.Status.UpdatedReplicas {
		return &rolloutState{
			message: fmt.Sprintf("%d old replicas are pending termination", deployment.Status.Replicas-deployment.Status.UpdatedReplicas),
		}, nil
	}
	if deployment.Status.AvailableReplicas < deployment.Status.UpdatedReplicas {
		return &rolloutState{
			message: fmt.Sprintf("%d of %d updated replicas are available", deployment.Status.AvailableReplicas, deployment.Status.UpdatedReplicas),
		}, nil
	}

	return &rolloutState{done: true}, nil
}

func progressingCondition(deployment *appsv1.Deployment) *appsv1.DeploymentCondition {
	for i := range deployment.Status.Conditions {
		if deployment.Status.Conditions[i].Type == appsv1.DeploymentProgressing {
			return &deployment.Status.Conditions[i]
		}
	}
	return nil
}
