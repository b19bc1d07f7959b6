package rmq

import (
	"runtime"
	"time"

	"github.com/seventv/WebPProcessor/src/global"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

type Instance struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(ctx global.Context) global.Rmq {
	cfg := ctx.Config().Rmq

	conn, err := amqp.Dial(cfg.ServerURL)
	if err != nil {
		logrus.Fatal("failed to connect to rmq: ", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		logrus.Fatal("failed to open rmq channel: ", err)
	}

	for _, queue := range []string{cfg.JobQueueName, cfg.ResultQueueName, cfg.UpdateQueueName} {
		_, err = ch.QueueDeclare(
			queue, // queue name
			true,  // durable
			false, // auto delete
			false, // exclusive
			false, // no wait
			nil,   // arguments
		)
		if err != nil {
			logrus.WithField("queue", queue).Fatal("failed to declare rmq queue: ", err)
		}
	}

	// as many unacked jobs as there are task workers
	if err := ch.Qos(runtime.GOMAXPROCS(0), 0, false); err != nil {
		logrus.Warn("failed to set rmq prefetch: ", err)
	}

	return &Instance{
		conn: conn,
		ch:   ch,
	}
}

func (r *Instance) Subscribe(queue string) (<-chan amqp.Delivery, error) {
	return r.ch.Consume(
		queue, // queue name
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no local
		false, // no wait
		nil,   // arguments
	)
}

func (r *Instance) Publish(queue string, contentType string, deliveryMode uint8, msg []byte) error {
	return r.ch.Publish(
		"",    // exchange
		queue, // queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  contentType,
			DeliveryMode: deliveryMode,
			Timestamp:    time.Now(),
			Body:         msg,
		},
	)
}

func (r *Instance) Shutdown() {
	_ = r.ch.Close()
	_ = r.conn.Close()
}
